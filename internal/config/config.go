// Package config binds the environment variables an LSP client
// instance observes (spec.md §6) using viper, following the pattern
// in the teacher's internal/cli/config/config.go: a New viper
// instance and explicit defaults, then one BindEnv per variable so
// every field can be overridden from the process environment without
// a config file.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds every environment variable the LSP client observes.
// Every field is optional; a blank Program means that server is not
// configured.
type Config struct {
	ClangdProgram       string `mapstructure:"clangd_program"`
	PylspProgram        string `mapstructure:"pylsp_program"`
	EnvProgram          string `mapstructure:"env_program"`
	Python3Program      string `mapstructure:"python3_program"`
	LSPTestServerProgram string `mapstructure:"lsp_test_server_program"`
	PylspIsCygwin       bool   `mapstructure:"pylsp_is_cygwin"`

	ClangdVerboseLog bool `mapstructure:"clangd_verbose_log"`
	PylspVerboseLog  bool `mapstructure:"pylsp_verbose_log"`

	SendLogDir string `mapstructure:"send_log_dir"`
}

// Load reads configuration from the process environment. There is no
// config file: every field maps directly to one of spec.md §6's
// SM_EDITOR_*/*_VERBOSE_LOG/JSON_RPC_CLIENT_SEND_LOG_DIR variables, so
// unlike the teacher's conduit.yaml-backed Load, AddConfigPath/
// ReadInConfig are not used here.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("clangd_program", "")
	v.SetDefault("pylsp_program", "")
	v.SetDefault("env_program", "")
	v.SetDefault("python3_program", "")
	v.SetDefault("lsp_test_server_program", "")
	v.SetDefault("pylsp_is_cygwin", false)
	v.SetDefault("clangd_verbose_log", false)
	v.SetDefault("pylsp_verbose_log", false)
	v.SetDefault("send_log_dir", "")

	bind(v, "clangd_program", "SM_EDITOR_CLANGD_PROGRAM")
	bind(v, "pylsp_program", "SM_EDITOR_PYLSP_PROGRAM")
	bind(v, "env_program", "SM_EDITOR_ENV_PROGRAM")
	bind(v, "python3_program", "SM_EDITOR_PYTHON3_PROGRAM")
	bind(v, "lsp_test_server_program", "SM_EDITOR_LSP_TEST_SERVER_PROGRAM")
	bind(v, "pylsp_is_cygwin", "SM_EDITOR_PYLSP_IS_CYGWIN")
	bind(v, "clangd_verbose_log", "CLANGD_VERBOSE_LOG")
	bind(v, "pylsp_verbose_log", "PYLSP_VERBOSE_LOG")
	bind(v, "send_log_dir", "JSON_RPC_CLIENT_SEND_LOG_DIR")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bind(v *viper.Viper, key, env string) {
	// BindEnv only errors when given zero arguments, which never
	// happens here; the original teacher code ignores this error too.
	_ = v.BindEnv(key, env)
}

// ConfiguredPrograms returns the name/program pairs among
// {clangd, pylsp, env, python3, lsp-test-server} whose environment
// variable was actually set, in a stable order. This backs the
// `attach` subcommand's interactive picker (cmd/lspclient) when more
// than one is configured.
func (c *Config) ConfiguredPrograms() []NamedProgram {
	candidates := []NamedProgram{
		{Name: "clangd", Program: c.ClangdProgram},
		{Name: "pylsp", Program: c.PylspProgram},
		{Name: "env", Program: c.EnvProgram},
		{Name: "python3", Program: c.Python3Program},
		{Name: "lsp-test-server", Program: c.LSPTestServerProgram},
	}
	out := make([]NamedProgram, 0, len(candidates))
	for _, cand := range candidates {
		if strings.TrimSpace(cand.Program) != "" {
			out = append(out, cand)
		}
	}
	return out
}

// NamedProgram is one configured server program and the short name
// used to refer to it on the command line and in prompts.
type NamedProgram struct {
	Name    string
	Program string
}

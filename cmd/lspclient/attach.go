package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	survey "github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/lspclient/internal/cli/ui"
	"github.com/conduit-lang/lspclient/internal/config"
	"github.com/conduit-lang/lspclient/internal/logging"
	"github.com/conduit-lang/lspclient/internal/lspclient"
	"github.com/conduit-lang/lspclient/internal/lspuri"
)

var attachCygwin bool

var attachCmd = &cobra.Command{
	Use:   "attach [server-name]",
	Short: "Start a configured language server and report its protocol status",
	Long: `attach spawns one of the servers named by the SM_EDITOR_*_PROGRAM
environment variables, drives the initialize handshake, prints
checkStatus(), and waits for Ctrl-C, after which it shuts the server
down and prints checkStatus() once more.

If server-name is omitted and more than one server is configured, an
interactive prompt asks which one to attach to.`,
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().BoolVar(&attachCygwin, "cygwin", false, "treat the server's paths as Cygwin paths (also enabled by SM_EDITOR_PYLSP_IS_CYGWIN)")
}

func runAttach(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	programs := cfg.ConfiguredPrograms()
	if len(programs) == 0 {
		fmt.Fprintln(os.Stdout, ui.ConfigError("no SM_EDITOR_*_PROGRAM environment variable is set", noColor))
		return nil
	}

	chosen, err := selectProgram(programs, args)
	if err != nil {
		return err
	}

	semantics := lspuri.Normal
	if attachCygwin || cfg.PylspIsCygwin {
		semantics = lspuri.Cygwin
	}

	logger := logging.New()
	defer logger.Sync()

	client := lspclient.New(logger, lspclient.Options{
		Program:           chosen.Program,
		URISemantics:      semantics,
		StderrLogDir:      os.TempDir(),
		StderrLogBaseName: fmt.Sprintf("lspclient-%s.log", chosen.Name),
		SendLogDir:        cfg.SendLogDir,
	})

	client.OnProtocolStateChanged = func(old, newState lspclient.State) {
		cyan := color.New(color.FgCyan)
		if noColor {
			cyan.DisableColor()
		}
		cyan.Fprintf(os.Stdout, "protocol state: %s -> %s\n", old, newState)
	}

	spinner := ui.NewSpinner(os.Stdout, ui.SpinnerOptions{Message: fmt.Sprintf("starting %s", chosen.Name), NoColor: noColor})
	spinner.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.StartServer(ctx); err != nil {
		spinner.Error(fmt.Sprintf("failed to start %s", chosen.Name))
		fmt.Fprintln(os.Stdout, ui.StartupError(err.Error(), noColor))
		return err
	}

	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(ctx) }()

	deadline := time.After(5 * time.Second)
waitInit:
	for {
		select {
		case <-deadline:
			break waitInit
		default:
		}
		if client.State() != lspclient.StateInitializing {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if client.State() == lspclient.StateNormal {
		spinner.Success(fmt.Sprintf("attached to %s", chosen.Name))
	} else {
		spinner.Stop()
	}

	fmt.Fprint(os.Stdout, client.CheckStatus())

	<-ctx.Done()
	fmt.Fprintln(os.Stdout, "\nshutting down...")

	if client.State() == lspclient.StateNormal {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.StopServer(stopCtx); err != nil {
			logger.Warn("stop server did not complete cleanly", zap.Error(err))
		}
	}

	<-runDone
	fmt.Fprint(os.Stdout, client.CheckStatus())
	return nil
}

func selectProgram(programs []config.NamedProgram, args []string) (config.NamedProgram, error) {
	if len(args) > 0 {
		name := args[0]
		for _, p := range programs {
			if p.Name == name {
				return p, nil
			}
		}
		names := make([]string, 0, len(programs))
		for _, p := range programs {
			names = append(names, p.Name)
		}
		fmt.Fprintln(os.Stdout, ui.ServerProgramNotFoundError(name, suggestNames(name, names), noColor))
		return config.NamedProgram{}, fmt.Errorf("no configured server program named %q", name)
	}

	if len(programs) == 1 {
		return programs[0], nil
	}

	options := make([]string, len(programs))
	for i, p := range programs {
		options[i] = fmt.Sprintf("%s (%s)", p.Name, p.Program)
	}
	var selectedIdx int
	prompt := &survey.Select{
		Message: "Select a language server to attach to:",
		Options: options,
	}
	if err := survey.AskOne(prompt, &selectedIdx); err != nil {
		return config.NamedProgram{}, err
	}
	return programs[selectedIdx], nil
}

func suggestNames(target string, candidates []string) []string {
	return ui.FindSimilar(target, candidates, nil)
}

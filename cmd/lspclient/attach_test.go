package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/lspclient/internal/config"
)

func TestSelectProgramByName(t *testing.T) {
	programs := []config.NamedProgram{
		{Name: "clangd", Program: "/usr/bin/clangd"},
		{Name: "pylsp", Program: "/usr/bin/pylsp"},
	}

	got, err := selectProgram(programs, []string{"pylsp"})
	require.NoError(t, err)
	assert.Equal(t, "pylsp", got.Name)
}

func TestSelectProgramUnknownNameErrors(t *testing.T) {
	programs := []config.NamedProgram{{Name: "clangd", Program: "/usr/bin/clangd"}}
	_, err := selectProgram(programs, []string{"pylps"})
	assert.Error(t, err)
}

func TestSelectProgramSingleConfiguredAutoSelects(t *testing.T) {
	programs := []config.NamedProgram{{Name: "clangd", Program: "/usr/bin/clangd"}}
	got, err := selectProgram(programs, nil)
	require.NoError(t, err)
	assert.Equal(t, "clangd", got.Name)
}

func TestSuggestNames(t *testing.T) {
	suggestions := suggestNames("pylps", []string{"clangd", "pylsp"})
	assert.Contains(t, suggestions, "pylsp")
}

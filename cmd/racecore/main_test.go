package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/racerl/racecore/pkg/core"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInput(t *testing.T) {
	in, err := parseInput("forward, Left")
	require.NoError(t, err)
	assert.Equal(t, core.InputState{Forward: true, Left: true}, in)

	in, err = parseInput("")
	require.NoError(t, err)
	assert.Equal(t, core.InputState{}, in)

	_, err = parseInput("jump")
	assert.ErrorContains(t, err, `unknown control "jump"`)
}

func TestVersionCommand(t *testing.T) {
	t.Cleanup(viper.Reset)
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "racecore "+Version)
}

func TestRecordingsCommand(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.db"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0644))

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"recordings", "--dir", dir})

	require.NoError(t, root.Execute())
	assert.Equal(t, filepath.Join(dir, "a.db")+"\n", out.String())
}

package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCommand(t *testing.T) {
	tmpdir := t.TempDir()
	cfg.DatabaseType = "sqlite"
	cfg.Database = filepath.Join(tmpdir, "chaperone.sqlite3")

	var out bytes.Buffer
	initCmd.SetOut(&out)
	initCmd.SetContext(context.Background())

	initCmd.Run(initCmd, nil)

	require.FileExists(t, cfg.Database)
	assert.Contains(t, out.String(), "Initialization complete")
}

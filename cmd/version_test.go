package cmd

import (
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/chaperonebot/chaperone/chaperone"
	"github.com/stretchr/testify/assert"
)

func TestVersionCommand(t *testing.T) {
	originalVersion := chaperone.Version
	t.Cleanup(
		func() {
			chaperone.Version = originalVersion
		},
	)
	chaperone.Version = "1.0.0"

	orig := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	t.Cleanup(
		func() {
			os.Stdout = orig
		},
	)

	// Capture the output
	versionCmd.Run(nil, nil)

	_ = w.Close()

	out, _ := io.ReadAll(r)
	output := string(out)
	t.Logf("output: %s", output)
	expected := fmt.Sprintf("version=%s\n", chaperone.Version)
	assert.Equal(t, expected, output)
}

//go:build e2e

package e2e

import (
	"os"
	"os/exec"
	"testing"
)

var voyagerBin string

func TestMain(m *testing.M) {
	voyagerBin = envOrLookPath("VOYAGER_BIN", "voyager")
	os.Exit(m.Run())
}

func envOrLookPath(envVar, name string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return ""
}

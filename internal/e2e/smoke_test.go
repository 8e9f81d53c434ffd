package e2e

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	require.NoError(t, writeConfigFixture(home))

	stdout, stderr, err := runPTTSync(t, binaryPath, home,
		"history", "add",
		"--id", "req-1",
		"--requester", "Ada",
		"--group", "Security",
	)
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Equal(t, "req-1", strings.TrimSpace(stdout))

	_, stderr, err = runPTTSync(t, binaryPath, home, "history", "update", "req-1", "--status", "in_progress")
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err = runPTTSync(t, binaryPath, home, "history", "list", "--json", "--raw")
	require.NoError(t, err, "stderr: %s", stderr)

	var records []struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		NeedsSync bool   `json:"needs_sync"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "req-1", records[0].ID)
	assert.Equal(t, "in_progress", records[0].Status)
	assert.True(t, records[0].NeedsSync)

	_, err = os.Stat(filepath.Join(home, ".cache", "pttsync", "history.db"))
	require.NoError(t, err)
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "pttsync-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/pttsync")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build pttsync binary: %s", string(output))
	return binaryPath
}

func runPTTSync(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home, "PTTSYNC_LOG_LEVEL=error")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func writeConfigFixture(home string) error {
	configDir := filepath.Join(home, ".config", "pttsync")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	cfg := `[server]
subdomain = "acme"

[cache]
backend = "sqlite"
`

	return os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(cfg), 0o600)
}

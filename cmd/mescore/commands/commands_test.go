package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	raw := `
storage:
  driver: sqlite
  sqlite_path: ` + filepath.Join(dir, "state.db") + `
archive:
  driver: fs
  fs_root: ` + filepath.Join(dir, "archive") + `
logging:
  level: error
metrics:
  enabled: false
`
	path := filepath.Join(dir, "mescore.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand("test", "none", "today")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestStatsCommandPrintsJSON(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())

	out := runCommand(t, "--config", cfgPath, "stats", "--kind", "orders")
	if !strings.Contains(out, `"total": 0`) {
		t.Fatalf("stats output: %s", out)
	}
}

func TestBackupSnapshotsRestoreCycle(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())
	key := "snapshots/test.json.gz"

	out := runCommand(t, "--config", cfgPath, "backup", "--key", key)
	if !strings.Contains(out, key) {
		t.Fatalf("backup output: %s", out)
	}

	out = runCommand(t, "--config", cfgPath, "snapshots")
	if !strings.Contains(out, key) {
		t.Fatalf("snapshots output: %s", out)
	}

	runCommand(t, "--config", cfgPath, "restore", "--key", key)
}

func TestStatsCommandRejectsUnknownKind(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())

	cmd := newRootCommand("test", "none", "today")
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--config", cfgPath, "stats", "--kind", "downtime"})
	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("unknown kind accepted")
	}
}

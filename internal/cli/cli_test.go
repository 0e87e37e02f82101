package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "lineal "+Version) {
		t.Errorf("output %q should contain the version", out)
	}
}

func TestSyncAndObjectsCommands(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "lineal.db")
	batchPath := filepath.Join(dir, "batch.yaml")

	batch := `
source:
  name: warehouse
  platform: postgres
objects:
  - schema: raw
    name: users
    type: table
    columns:
      - name: id
        type: bigint
  - schema: analytics
    name: active_users
    sql: SELECT id FROM raw.users
`
	if err := os.WriteFile(batchPath, []byte(batch), 0o644); err != nil {
		t.Fatalf("failed to write batch file: %v", err)
	}

	out, err := runCommand(t, "sync", batchPath, "--state-path", statePath)
	if err != nil {
		t.Fatalf("sync failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "analytics.active_users") {
		t.Errorf("sync output should list the synced object:\n%s", out)
	}
	if !strings.Contains(out, "2 resolved") {
		t.Errorf("sync output should report resolution counts:\n%s", out)
	}

	out, err = runCommand(t, "objects", "--source", "warehouse", "--state-path", statePath)
	if err != nil {
		t.Fatalf("objects failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "raw.users") {
		t.Errorf("objects output should list raw.users:\n%s", out)
	}

	out, err = runCommand(t, "impact", "raw.users", "--source", "warehouse", "--state-path", statePath)
	if err != nil {
		t.Fatalf("impact failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "analytics.active_users") {
		t.Errorf("impact output should reach the downstream view:\n%s", out)
	}
}

func TestSyncCommand_MissingBatchFile(t *testing.T) {
	_, err := runCommand(t, "sync", filepath.Join(t.TempDir(), "nope.yaml"),
		"--state-path", filepath.Join(t.TempDir(), "lineal.db"))
	if err == nil {
		t.Error("expected error for missing batch file")
	}
}

func TestLoadBatchFile_Validation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	if err := os.WriteFile(path, []byte("objects: []\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := loadBatchFile(path); err == nil {
		t.Error("expected error for batch without a source name")
	}
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	if cmd == nil {
		t.Fatal("newRootCmd returned nil")
	}
	if cmd.Use != "traefik-guard" {
		t.Errorf("Expected use 'traefik-guard', got '%s'", cmd.Use)
	}
	for _, sub := range []string{"add", "list", "rm", "update", "check", "server"} {
		found := false
		for _, c := range cmd.Commands() {
			if strings.HasPrefix(c.Use, sub) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand %q to be registered", sub)
		}
	}
}

func TestSetupLogger(t *testing.T) {
	levels := []string{"DEBUG", "INFO", "WARN", "ERROR", "UNKNOWN"}
	for _, lvl := range levels {
		l := setupLogger(lvl, "")
		if l == nil {
			t.Errorf("setupLogger returned nil for level %s", lvl)
		}
	}

	logFile := filepath.Join(t.TempDir(), "test.log")
	if l := setupLogger("INFO", logFile); l == nil {
		t.Error("setupLogger with file returned nil")
	}

	// Test invalid log file path
	if l := setupLogger("INFO", "/nonexistent/path/to/log.log"); l == nil {
		t.Error("setupLogger should return a logger even if file fails")
	}
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddListRemoveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	out, err := runCommand(t, "--storage", dir, "add", "403|US#blacklist")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if strings.TrimSpace(out) != "0" {
		t.Errorf("expected index 0, got %q", out)
	}

	out, err = runCommand(t, "--storage", dir, "add", "404|GB")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if strings.TrimSpace(out) != "1" {
		t.Errorf("expected index 1, got %q", out)
	}

	out, err = runCommand(t, "--storage", dir, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "403|US#blacklist") || !strings.Contains(out, "404|GB") {
		t.Errorf("unexpected listing %q", out)
	}

	out, err = runCommand(t, "--storage", dir, "list", "blacklist")
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if strings.Contains(out, "404|GB") {
		t.Errorf("expected the untagged rule to be filtered out, got %q", out)
	}

	if _, err := runCommand(t, "--storage", dir, "rm", "tag", "blacklist"); err != nil {
		t.Fatalf("rm failed: %v", err)
	}
	out, err = runCommand(t, "--storage", dir, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if strings.Contains(out, "403|US") {
		t.Errorf("expected the blacklist rule to be deleted, got %q", out)
	}

	// the rules file survives on disk between invocations
	data, err := os.ReadFile(filepath.Join(dir, "default.rules.txt"))
	if err != nil {
		t.Fatalf("expected the rules file to exist: %v", err)
	}
	if strings.TrimSpace(string(data)) != "404|GB" {
		t.Errorf("unexpected rules file content %q", string(data))
	}
}

func TestUpdateByIndex(t *testing.T) {
	dir := t.TempDir()
	if _, err := runCommand(t, "--storage", dir, "add", "403|US"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := runCommand(t, "--storage", dir, "update", "index", "0", "401|US"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	out, err := runCommand(t, "--storage", dir, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "401|US") {
		t.Errorf("expected the replacement rule, got %q", out)
	}

	if _, err := runCommand(t, "--storage", dir, "update", "bogus", "0", "401|US"); err == nil {
		t.Error("expected an unknown ref type to fail")
	}
}

func TestAddRejectsMalformedRule(t *testing.T) {
	if _, err := runCommand(t, "--storage", t.TempDir(), "add", "200|a|b|c|d"); err == nil {
		t.Error("expected a malformed rule to fail")
	}
}

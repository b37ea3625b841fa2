package main

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestResolveConfigPathPrefersExplicitFlag(t *testing.T) {
	cfgPath, rootFlag = "explicit.yaml", ""
	defer func() { cfgPath, rootFlag = "", "" }()

	got, err := resolveConfigPath()
	if err != nil {
		t.Fatalf("resolveConfigPath returned error: %v", err)
	}
	if got != "explicit.yaml" {
		t.Fatalf("expected explicit.yaml, got %s", got)
	}
}

func TestResolveConfigPathFallsBackToRootFlag(t *testing.T) {
	cfgPath, rootFlag = "", "/tmp/stack-root"
	defer func() { cfgPath, rootFlag = "", "" }()

	got, err := resolveConfigPath()
	if err != nil {
		t.Fatalf("resolveConfigPath returned error: %v", err)
	}
	if got != "/tmp/stack-root/config.yaml" {
		t.Fatalf("expected /tmp/stack-root/config.yaml, got %s", got)
	}
}

func TestResolveConfigPathFallsBackToEnv(t *testing.T) {
	cfgPath, rootFlag = "", ""
	t.Setenv("SOVEREIGN_ROOT", "/tmp/env-root")

	got, err := resolveConfigPath()
	if err != nil {
		t.Fatalf("resolveConfigPath returned error: %v", err)
	}
	if got != "/tmp/env-root/config.yaml" {
		t.Fatalf("expected /tmp/env-root/config.yaml, got %s", got)
	}
}

func TestLoadConfigAppliesRootFlagOverride(t *testing.T) {
	root := t.TempDir()
	cfgPath, rootFlag = root+"/missing-config.yaml", root
	defer func() { cfgPath, rootFlag = "", "" }()

	cfg, storageRoot, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if storageRoot != root {
		t.Fatalf("expected storage root %s, got %s", root, storageRoot)
	}
	if cfg.Root != root {
		t.Fatalf("expected cfg.Root %s, got %s", root, cfg.Root)
	}
}

func TestVersionCommandPrintsSharedVersion(t *testing.T) {
	output := captureStdout(t, func() {
		if err := versionCmd.RunE(&cobra.Command{}, nil); err != nil {
			t.Fatalf("versionCmd returned error: %v", err)
		}
	})
	if !strings.Contains(output, "sovereignd") {
		t.Fatalf("expected output to name the binary, got: %s", output)
	}
}

func TestVerifyAuditTreatsAbsentLogAsIntact(t *testing.T) {
	root := t.TempDir()
	cfgPath, rootFlag = root+"/missing-config.yaml", root
	defer func() { cfgPath, rootFlag = "", "" }()

	output := captureStdout(t, func() {
		if err := verifyAuditCmd.RunE(&cobra.Command{}, nil); err != nil {
			t.Fatalf("verifyAuditCmd returned error for an empty chain: %v", err)
		}
	})
	if !strings.Contains(output, "intact") {
		t.Fatalf("expected an intact-chain message, got: %s", output)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stdout = orig
	return <-done
}

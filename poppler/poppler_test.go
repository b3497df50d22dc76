package poppler

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFakeTool(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocateEnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeFakeTool(t, dir, "pdftoppm")
	t.Setenv("POPPLER_PATH", dir)
	Reset()
	t.Cleanup(Reset)

	in := Locate()
	if !in.Found {
		t.Fatal("expected install to be found via POPPLER_PATH")
	}
	if in.BinDir != dir {
		t.Errorf("BinDir = %q, want %q", in.BinDir, dir)
	}
	if !in.Verified {
		t.Error("runnable fake tool should verify")
	}
	if want := filepath.Join(dir, "pdfinfo"); in.InfoTool() != want {
		t.Errorf("InfoTool = %q, want %q", in.InfoTool(), want)
	}
}

func TestLocateMemoizes(t *testing.T) {
	dir := t.TempDir()
	writeFakeTool(t, dir, "pdftocairo")
	t.Setenv("POPPLER_PATH", dir)
	Reset()
	t.Cleanup(Reset)

	first := Locate()
	// removing the binary must not change the cached answer
	if err := os.Remove(filepath.Join(dir, "pdftocairo")); err != nil {
		t.Fatal(err)
	}
	second := Locate()
	if first != second {
		t.Errorf("cached result changed: %+v vs %+v", first, second)
	}
}

func TestLocateNotFound(t *testing.T) {
	t.Setenv("POPPLER_PATH", "")
	t.Setenv("PATH", t.TempDir())

	origDefaults, origCloud := defaultDirs, cloudDirs
	defaultDirs, cloudDirs = nil, nil
	t.Cleanup(func() { defaultDirs, cloudDirs = origDefaults, origCloud })

	Reset()
	t.Cleanup(Reset)

	if in := Locate(); in.Found {
		t.Errorf("expected no install, got %+v", in)
	}
}

func TestAtMissingDirectory(t *testing.T) {
	in := At(filepath.Join(t.TempDir(), "nope"))
	if in.Found {
		t.Errorf("expected not found, got %+v", in)
	}
}

func TestInfoToolPathLookup(t *testing.T) {
	in := Install{Tool: "pdftoppm", Found: true}
	if got := in.InfoTool(); got != "pdfinfo" {
		t.Errorf("InfoTool = %q, want bare pdfinfo for PATH installs", got)
	}
}

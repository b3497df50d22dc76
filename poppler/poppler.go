// Package poppler locates a usable poppler-utils installation. Discovery is
// best effort: a binary found on PATH is accepted even when its version probe
// fails, because an unverifiable tool is not the same as an absent one, while
// guessed filesystem locations must pass the probe before being trusted.
package poppler

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// tools are the rasterizer binaries probed in preference order.
var tools = []string{"pdftoppm", "pdftocairo"}

// defaultDirs are conventional install locations checked after PATH.
var defaultDirs = []string{
	"/usr/bin",
	"/usr/local/bin",
	"/opt/homebrew/bin",
	"/opt/local/bin",
}

// cloudDirs cover buildpack-style deployments where poppler lands outside
// the usual prefixes.
var cloudDirs = []string{
	"/app/.apt/usr/bin",
	"/home/linuxbrew/.linuxbrew/bin",
}

// swapped out by tests
var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
)

const probeTimeout = 3 * time.Second

// Install describes a discovered poppler toolset.
type Install struct {
	BinDir   string // directory holding the tools, empty when found via PATH
	Tool     string // resolved rasterizer binary path or name
	Found    bool
	Verified bool // version probe succeeded
}

// InfoTool returns the pdfinfo path matching the discovered rasterizer.
func (in Install) InfoTool() string {
	if in.BinDir != "" {
		return filepath.Join(in.BinDir, "pdfinfo")
	}
	return "pdfinfo"
}

var (
	mu     sync.Mutex
	cached *Install
)

// Locate finds a poppler installation, caching the first answer for the life
// of the process. Call Reset to force rediscovery.
func Locate() Install {
	mu.Lock()
	defer mu.Unlock()
	if cached == nil {
		in := discover()
		cached = &in
	}
	return *cached
}

// Reset clears the cached discovery result.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cached = nil
}

// At builds an Install for an explicitly configured bin directory, probing
// each known tool in order.
func At(binDir string) Install {
	for _, tool := range tools {
		path := filepath.Join(binDir, tool)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return Install{BinDir: binDir, Tool: path, Found: true, Verified: probe(path)}
	}
	return Install{BinDir: binDir}
}

func discover() Install {
	if dir := os.Getenv("POPPLER_PATH"); dir != "" {
		if in := At(dir); in.Found {
			return in
		}
	}

	// PATH wins even without a successful probe
	for _, tool := range tools {
		if path, err := lookPath(tool); err == nil {
			return Install{Tool: path, Found: true, Verified: probe(path)}
		}
	}

	for _, dir := range append(append([]string{}, defaultDirs...), cloudDirs...) {
		for _, tool := range tools {
			path := filepath.Join(dir, tool)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if probe(path) {
				return Install{BinDir: dir, Tool: path, Found: true, Verified: true}
			}
		}
	}
	return Install{}
}

// probe runs the tool's version flag to confirm it executes at all. Poppler
// prints the version banner on stderr and exits zero.
func probe(path string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	cmd := commandContext(ctx, path, "-v")
	return cmd.Run() == nil
}

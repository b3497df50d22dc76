package convert

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// stubCommand redirects subprocess invocations to TestHelperProcess running
// in the given mode, restoring the real exec on cleanup.
func stubCommand(t *testing.T, mode string) {
	t.Helper()
	orig := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { commandContext = orig })
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "helper: no command")
		os.Exit(2)
	}
	name, args := args[0], args[1:]

	switch os.Getenv("HELPER_MODE") {
	case "office-ok":
		helperOffice(args, true)
	case "office-no-output":
		helperOffice(args, false)
	case "office-fail":
		fmt.Fprintln(os.Stderr, "Error: source file could not be loaded")
		os.Exit(3)
	case "office-hang":
		time.Sleep(10 * time.Second)
	case "raster-ok":
		helperRaster(name, args, 2, 2)
	case "raster-short":
		helperRaster(name, args, 3, 2)
	case "raster-info-fail":
		fmt.Fprintln(os.Stderr, "Syntax Error: document is damaged")
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, "helper: unknown mode")
		os.Exit(2)
	}
}

// helperOffice mimics soffice --convert-to pdf, optionally writing the
// output artifact next to the input.
func helperOffice(args []string, writeOutput bool) {
	var outDir, input string
	for i, arg := range args {
		if arg == "--outdir" && i+1 < len(args) {
			outDir = args[i+1]
		}
		input = arg
	}
	if !writeOutput {
		return
	}
	base := input[strings.LastIndexByte(input, '/')+1:]
	stem := strings.TrimSuffix(base, ".pptx")
	if err := os.WriteFile(outDir+"/"+stem+".pdf", []byte("%PDF-1.4 stub"), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// helperRaster mimics pdfinfo and pdftoppm: the info call reports pages
// pages, the render call writes rendered real PNG frames.
func helperRaster(name string, args []string, pages, rendered int) {
	if strings.Contains(name, "pdfinfo") {
		fmt.Printf("Title:          stub\nPages:          %d\nEncrypted:      no\n", pages)
		return
	}
	prefix := args[len(args)-1]
	for i := 1; i <= rendered; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				img.Set(x, y, color.RGBA{R: uint8(i * 40), G: 200, B: 100, A: 255})
			}
		}
		f, err := os.Create(fmt.Sprintf("%s-%d.png", prefix, i))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := png.Encode(f, img); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		f.Close()
	}
}

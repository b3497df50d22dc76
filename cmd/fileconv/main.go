// Command fileconv converts files from the command line using the same
// pipeline the web UI drives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fileconv/fileconv/convert"
	"github.com/fileconv/fileconv/internal/build"
)

var logger *slog.Logger

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	rootCmd := &cobra.Command{
		Use:     "fileconv",
		Short:   "Convert presentations to PDF and PDFs to multi-page TIFF",
		Version: build.Version,
	}
	rootCmd.AddCommand(newConvertCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newConvertCommand() *cobra.Command {
	var (
		output      string
		method      string
		dpi         int
		compression string
		remoteURL   string
		remoteToken string
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Convert one file, the target format follows from the extension",
		Long: `Convert one file. A .pptx input becomes a PDF, a .pdf input becomes a
multi-page TIFF. The output lands next to the input unless --output is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runConvert(ctx, args[0], output, method, dpi, compression, remoteURL, remoteToken)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&method, "method", "text", "presentation conversion method (text, office, remote)")
	cmd.Flags().IntVar(&dpi, "dpi", convert.DefaultDPI, fmt.Sprintf("TIFF resolution, one of %v", convert.DPIChoices))
	cmd.Flags().StringVar(&compression, "compression", "deflate", "TIFF compression (deflate, adobe-deflate, lzw, none)")
	cmd.Flags().StringVar(&remoteURL, "remote-url", os.Getenv("CONVERT_API_URL"), "remote conversion service URL")
	cmd.Flags().StringVar(&remoteToken, "token", os.Getenv("CONVERT_API_TOKEN"), "remote conversion API token")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall conversion deadline")
	return cmd
}

func runConvert(ctx context.Context, input, output, method string, dpi int, compression, remoteURL, remoteToken string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	req, err := buildRequest(input, data, method, dpi, compression, remoteURL, remoteToken)
	if err != nil {
		return err
	}

	plan, err := convert.Select(req)
	if err != nil {
		return describeFailure(err)
	}
	for _, notice := range plan.Notices {
		logger.Warn(notice)
	}

	result, err := plan.Backend.Convert(ctx, req)
	if err != nil {
		return describeFailure(err)
	}

	if output == "" {
		output = filepath.Join(filepath.Dir(input), result.Filename)
	}
	if err := os.WriteFile(output, result.Output, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	logger.Info("Conversion complete", "method", plan.Method, "output", output, "bytes", len(result.Output))
	return nil
}

func buildRequest(input string, data []byte, method string, dpi int, compression, remoteURL, remoteToken string) (convert.Request, error) {
	switch strings.ToLower(filepath.Ext(input)) {
	case ".pptx", ".ppt":
		parsedMethod, ok := convert.ParseMethod(method)
		if !ok {
			return convert.Request{}, fmt.Errorf("unknown method %q, use text, office or remote", method)
		}
		return convert.Request{
			Input:    data,
			Filename: filepath.Base(input),
			Source:   convert.KindPresentation,
			Target:   convert.KindDocument,
			Method:   parsedMethod,
			Options: convert.Options{
				RemoteURL:   remoteURL,
				RemoteToken: remoteToken,
			},
		}, nil
	case ".pdf":
		if !convert.ValidDPI(dpi) {
			return convert.Request{}, fmt.Errorf("dpi must be one of %v", convert.DPIChoices)
		}
		parsedCompression, ok := convert.ParseCompression(compression)
		if !ok {
			return convert.Request{}, fmt.Errorf("unknown compression %q", compression)
		}
		return convert.Request{
			Input:    data,
			Filename: filepath.Base(input),
			Source:   convert.KindDocument,
			Target:   convert.KindImageSet,
			Method:   convert.MethodRasterize,
			Options: convert.Options{
				DPI:         dpi,
				Compression: parsedCompression,
			},
		}, nil
	default:
		return convert.Request{}, fmt.Errorf("no conversion for %s files, expected .pptx or .pdf", filepath.Ext(input))
	}
}

// describeFailure prints remediation guidance before handing the error back
// to cobra for the exit status
func describeFailure(err error) error {
	if f, ok := convert.AsFailure(err); ok {
		logger.Error(f.Message, "kind", f.Kind)
		if f.Remediation != "" {
			fmt.Fprintln(os.Stderr, "\n"+f.Remediation)
		}
		if f.Detail != "" {
			fmt.Fprintln(os.Stderr, f.Detail)
		}
	}
	return err
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/hwp2md/internal/convert"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files or URLs...]",
	Short: "Convert HWP files to Markdown",
	Long: `Convert reads each HWP document (a local path or an http(s) URL), recovers
the body text and writes <name>.md to --out-dir. Existing Markdown files are
skipped unless --overwrite is set. Inputs are converted concurrently on a
bounded worker pool; status lines are printed in input order.

With a single input, -o writes to the given path and --stdout prints the
Markdown instead of writing a file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringP("output", "o", "", "output file (single input only)")
	convertCmd.Flags().Bool("stdout", false, "print Markdown to stdout (single input only)")
	convertCmd.Flags().String("out-dir", ".", "directory for converted Markdown files")
	convertCmd.Flags().Int("workers", 0, "maximum concurrent conversions (default 5)")
	convertCmd.Flags().Bool("frontmatter", false, "prepend YAML frontmatter with source and stats")
	convertCmd.Flags().Bool("overwrite", false, "replace existing Markdown files")
	convertCmd.Flags().Bool("normalize", false, "apply Unicode NFC to recovered text")

	viper.BindPFlag("conversion.workers", convertCmd.Flags().Lookup("workers"))
	viper.BindPFlag("conversion.frontmatter", convertCmd.Flags().Lookup("frontmatter"))
	viper.BindPFlag("conversion.overwrite", convertCmd.Flags().Lookup("overwrite"))
	viper.BindPFlag("conversion.normalize", convertCmd.Flags().Lookup("normalize"))

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	rec, closeRec, err := openRecorder(cfg.History)
	if err != nil {
		return err
	}
	defer closeRec()

	conv := convert.New(cfg.Conversion)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	output, _ := cmd.Flags().GetString("output")
	toStdout, _ := cmd.Flags().GetBool("stdout")
	if output != "" || toStdout {
		if len(args) != 1 {
			return fmt.Errorf("-o and --stdout take exactly one input, got %d", len(args))
		}
		return writeOne(ctx, conv, rec, args[0], output, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}

	outDir, _ := cmd.Flags().GetString("out-dir")
	result := convert.ConvertBatch(ctx, conv, args, convert.BatchOptions{
		OutDir:   outDir,
		Recorder: rec,
	}, cmd.OutOrStdout())
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}

// writeOne converts input and writes the result to the output file, or to
// stdout when output is empty. The output file is only written once the
// conversion has succeeded.
func writeOne(ctx context.Context, conv *convert.Converter, rec convert.Recorder, input, output string, stdout, errw io.Writer) error {
	content, err := convertOne(ctx, conv, rec, input, errw)
	if err != nil {
		return err
	}
	if output == "" {
		_, err = io.WriteString(stdout, content)
		return err
	}
	return os.WriteFile(output, []byte(content), 0o644)
}

// convertOne returns the converted document and writes diagnostics to errw.
func convertOne(ctx context.Context, conv *convert.Converter, rec convert.Recorder, input string, errw io.Writer) (string, error) {
	raw, err := convert.Load(ctx, nil, input, conv.Config().MaxInputSize)
	if err != nil {
		return "", err
	}
	res, err := conv.Convert(raw)
	if rec != nil {
		if rerr := rec.Record(ctx, convert.NewRecord(input, raw, res, err)); rerr != nil {
			fmt.Fprintf(errw, "warning: history: %v\n", rerr)
		}
	}
	if err != nil {
		return "", fmt.Errorf("converting %s: %w", input, err)
	}

	for _, warn := range res.Warnings {
		fmt.Fprintf(errw, "warning: %v\n", warn)
	}
	return conv.Output(input, res)
}

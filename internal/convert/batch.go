// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/hwp2md/internal/httputil"
	"github.com/pdiddy/hwp2md/pkg/types"
)

// Status is the per-file outcome of a file conversion.
type Status string

const (
	StatusConverted Status = "converted"
	StatusEmpty     Status = "empty"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Recorder stores one record per conversion attempt.
type Recorder interface {
	Record(ctx context.Context, rec types.Record) error
}

// BatchOptions controls where file conversions read from and write to.
type BatchOptions struct {
	// OutDir receives <base>.md files. Empty means the current directory.
	OutDir string

	// Client fetches http(s) inputs. Nil uses http.DefaultClient.
	Client *http.Client

	// Recorder, when set, receives a record for every converted or failed
	// input.
	Recorder Recorder
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Empty     int
	Skipped   int
	Failed    int
}

// Total returns the total number of inputs processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Empty + r.Skipped + r.Failed
}

// HasFailures reports whether any input failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

func (r *BatchResult) add(s Status) {
	switch s {
	case StatusConverted:
		r.Converted++
	case StatusEmpty:
		r.Empty++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}

// Job is one unit of work for Run. Load supplies the document bytes.
type Job struct {
	Name string
	Load func(ctx context.Context) ([]byte, error)
}

// JobResult pairs a job with its conversion outcome. Err is set when the
// input could not be loaded or its container could not be read.
type JobResult struct {
	Name   string
	Raw    []byte
	Result types.Result
	Err    error
}

// Run converts jobs on a pool of at most Workers goroutines. A failing job
// never cancels its siblings. Results are returned in input order. Jobs not
// yet started when ctx is cancelled report ctx.Err().
func Run(ctx context.Context, c *Converter, jobs []Job) []JobResult {
	results := make([]JobResult, len(jobs))
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i] = runJob(ctx, c, job)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runJob(ctx context.Context, c *Converter, job Job) (jr JobResult) {
	jr.Name = job.Name
	defer func() {
		if r := recover(); r != nil {
			jr = JobResult{Name: job.Name, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()
	if err := ctx.Err(); err != nil {
		jr.Err = err
		return jr
	}
	raw, err := job.Load(ctx)
	if err != nil {
		jr.Err = err
		return jr
	}
	jr.Raw = raw
	jr.Result, jr.Err = c.Convert(raw)
	return jr
}

// ConvertFile converts one input (a local path or an http(s) URL) and
// writes <base>.md to opts.OutDir. Existing output is skipped unless the
// converter is configured to overwrite. A status line is printed to w.
func ConvertFile(ctx context.Context, c *Converter, input string, opts BatchOptions, w io.Writer) Status {
	base := BaseName(input)
	mdPath := OutputPath(opts.OutDir, input)

	if !c.cfg.Overwrite {
		if _, err := os.Stat(mdPath); err == nil {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", base)
			return StatusSkipped
		}
	}

	raw, err := Load(ctx, opts.Client, input, c.cfg.MaxInputSize)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		record(ctx, opts.Recorder, NewRecord(input, nil, types.Result{}, err), w)
		return StatusFailed
	}

	res, err := c.Convert(raw)
	record(ctx, opts.Recorder, NewRecord(input, raw, res, err), w)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return StatusFailed
	}

	content, err := c.Output(input, res)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return StatusFailed
	}

	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
			return StatusFailed
		}
	}
	if err := os.WriteFile(mdPath, []byte(content), 0o644); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return StatusFailed
	}

	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s (%v)\n", base, warn)
	}
	if res.Outcome == types.OutcomeEmpty {
		fmt.Fprintf(w, "empty:   %s (no text recovered)\n", base)
		return StatusEmpty
	}
	fmt.Fprintf(w, "converted: %s (%d headings, %d paragraphs)\n", base, res.Stats.Headings, res.Stats.Paragraphs)
	return StatusConverted
}

// ConvertBatch runs ConvertFile over inputs on the worker pool, printing
// each file's status lines to w in input order, then a summary. When two
// inputs map to the same output file, the first one wins and the later ones
// fail without being converted.
func ConvertBatch(ctx context.Context, c *Converter, inputs []string, opts BatchOptions, w io.Writer) BatchResult {
	logs := make([]bytes.Buffer, len(inputs))
	statuses := make([]Status, len(inputs))

	owner := make(map[string]string, len(inputs))
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Workers)
	for i, in := range inputs {
		out := OutputPath(opts.OutDir, in)
		if prev, dup := owner[out]; dup {
			fmt.Fprintf(&logs[i], "failed:  %s (output %s already taken by %s)\n", BaseName(in), out, prev)
			statuses[i] = StatusFailed
			continue
		}
		owner[out] = in

		i, in := i, in
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					fmt.Fprintf(&logs[i], "failed:  %s (%v: %v)\n", BaseName(in), ErrPanic, r)
					statuses[i] = StatusFailed
				}
			}()
			if err := ctx.Err(); err != nil {
				fmt.Fprintf(&logs[i], "failed:  %s (%v)\n", BaseName(in), err)
				statuses[i] = StatusFailed
				return nil
			}
			statuses[i] = ConvertFile(ctx, c, in, opts, &logs[i])
			return nil
		})
	}
	_ = g.Wait()

	var result BatchResult
	for i := range inputs {
		w.Write(logs[i].Bytes())
		result.add(statuses[i])
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d empty, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Empty, result.Skipped, result.Failed, result.Total())
	return result
}

// Load reads input from disk, or downloads it when it is an http(s) URL.
func Load(ctx context.Context, client *http.Client, input string, maxBytes int64) ([]byte, error) {
	if isURL(input) {
		return httputil.Fetch(ctx, client, input, maxBytes)
	}
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, info.Size(), maxBytes)
	}
	return os.ReadFile(input)
}

// OutputPath returns the Markdown file written for input under outDir.
func OutputPath(outDir, input string) string {
	return filepath.Join(outDir, BaseName(input)+".md")
}

// BaseName returns the input's file name without its extension. URLs use
// the last path segment.
func BaseName(input string) string {
	name := filepath.Base(input)
	if isURL(input) {
		rest := input[strings.Index(input, "://")+3:]
		if i := strings.IndexAny(rest, "?#"); i >= 0 {
			rest = rest[:i]
		}
		name = "document"
		if i := strings.Index(rest, "/"); i >= 0 {
			if b := path.Base(rest[i:]); b != "/" {
				name = b
			}
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func record(ctx context.Context, r Recorder, rec types.Record, w io.Writer) {
	if r == nil {
		return
	}
	if err := r.Record(ctx, rec); err != nil {
		fmt.Fprintf(w, "warning: history: %v\n", err)
	}
}

type frontmatter struct {
	Source      string        `yaml:"source"`
	ConvertedAt string        `yaml:"converted_at"`
	Outcome     types.Outcome `yaml:"outcome"`
	Stats       types.Stats   `yaml:"stats"`
	Warnings    []string      `yaml:"warnings,omitempty"`
}

// Output returns the file content for res: its Markdown, with YAML
// frontmatter prepended when the converter is configured for it.
func (c *Converter) Output(source string, res types.Result) (string, error) {
	if !c.cfg.Frontmatter {
		return res.Markdown, nil
	}
	return addFrontmatter(source, res)
}

// addFrontmatter prepends YAML frontmatter to the converted Markdown.
func addFrontmatter(source string, res types.Result) (string, error) {
	fm := frontmatter{
		Source:      source,
		ConvertedAt: time.Now().UTC().Format(time.RFC3339),
		Outcome:     res.Outcome,
		Stats:       res.Stats,
		Warnings:    res.WarningStrings(),
	}
	data, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshaling frontmatter: %w", err)
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(data)
	b.WriteString("---\n\n")
	b.WriteString(res.Markdown)
	return b.String(), nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert runs the HWP-to-Markdown pipeline: container reader,
// section extraction, text decoding and structural classification.
package convert

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/hwp2md/internal/cfb"
	"github.com/pdiddy/hwp2md/internal/classify"
	"github.com/pdiddy/hwp2md/internal/decode"
	"github.com/pdiddy/hwp2md/internal/hwp"
	"github.com/pdiddy/hwp2md/pkg/types"
)

var (
	// ErrTooLarge rejects inputs above ConversionConfig.MaxInputSize.
	ErrTooLarge = errors.New("convert: input too large")

	// ErrPanic reports a conversion task that panicked. The panic is
	// contained to that task.
	ErrPanic = errors.New("convert: conversion panicked")
)

// Converter turns one HWP document into Markdown. It holds only
// configuration, so a single Converter is safe for concurrent use.
type Converter struct {
	cfg types.ConversionConfig
}

// New creates a Converter; zero config fields take their defaults.
func New(cfg types.ConversionConfig) *Converter {
	return &Converter{cfg: cfg.WithDefaults()}
}

// Config returns the effective configuration.
func (c *Converter) Config() types.ConversionConfig {
	return c.cfg
}

// Convert runs the pipeline over raw. Errors are container-level failures
// (wrapping cfb.ErrInvalidContainer or ErrTooLarge). Unreadable sections
// are skipped and listed in Result.Warnings. A valid container without text
// returns OutcomeEmpty and the fallback document.
func (c *Converter) Convert(raw []byte) (types.Result, error) {
	if int64(len(raw)) > c.cfg.MaxInputSize {
		return types.Result{}, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(raw), c.cfg.MaxInputSize)
	}

	container, err := cfb.Open(raw)
	if err != nil {
		return types.Result{}, err
	}

	sections, warnings := hwp.Sections(container, hwp.Options{
		Inflate:         hwp.InflateMode(c.cfg.Inflate),
		MaxInflatedSize: c.cfg.MaxInflatedSize,
	})

	var stats types.Stats
	bufs := make([][]byte, len(sections))
	for i, s := range sections {
		bufs[i] = s.Data
		stats.Bytes += len(s.Data)
		if s.Inflated {
			stats.InflatedSections++
		}
	}
	stats.Sections = len(sections)
	for _, w := range warnings {
		if errors.Is(w, cfb.ErrEntryRead) {
			stats.FailedSections++
		}
	}

	lines, ds := decode.DecodeWithStats(bufs, decode.Options{Normalize: c.cfg.Normalize})
	stats.Units = ds.Units
	stats.DroppedUnits = ds.DroppedUnits
	stats.Lines = len(lines)

	doc := classify.Classify(lines, c.cfg.Classifier)
	outcome := types.OutcomeConverted
	if doc.Empty() {
		outcome = types.OutcomeEmpty
		doc = classify.FallbackDocument()
	} else {
		stats.Headings = doc.Count(types.BlockHeading)
		stats.Paragraphs = doc.Count(types.BlockParagraph)
	}

	return types.Result{
		Outcome:  outcome,
		Document: doc,
		Markdown: classify.Render(doc),
		Warnings: warnings,
		Stats:    stats,
	}, nil
}

// NewRecord summarizes one conversion attempt for the history store.
func NewRecord(source string, raw []byte, res types.Result, err error) types.Record {
	sum := sha256.Sum256(raw)
	rec := types.Record{
		ID:         uuid.NewString(),
		Source:     source,
		SHA256:     hex.EncodeToString(sum[:]),
		Outcome:    string(res.Outcome),
		Headings:   res.Stats.Headings,
		Paragraphs: res.Stats.Paragraphs,
		Warnings:   len(res.Warnings),
		CreatedAt:  time.Now().UTC(),
	}
	if err != nil {
		rec.Outcome = "failed"
		rec.Error = err.Error()
	}
	return rec
}

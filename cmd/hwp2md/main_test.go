// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/hwp2md/internal/cfb/cfbtest"
	"github.com/pdiddy/hwp2md/internal/convert"
	"github.com/pdiddy/hwp2md/internal/history"
	"github.com/pdiddy/hwp2md/pkg/types"
)

func TestLoadConfig_Defaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Conversion.Classifier.MaxHeadingRunes)
	assert.Equal(t, 10, cfg.Conversion.Classifier.MaxHeadingTokens)
	assert.Equal(t, ".,", cfg.Conversion.Classifier.Terminals)
	assert.Equal(t, 2, cfg.Conversion.Classifier.HeadingLevel)
	assert.Equal(t, "auto", cfg.Conversion.Inflate)
	assert.Equal(t, 5, cfg.Conversion.Workers)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, ".hwp2md", cfg.History.Dir)
	assert.False(t, cfg.History.Enabled)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hwp2md.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`conversion:
  workers: 2
  classifier:
    terminals: ".다"
server:
  allowed_origins: ["http://localhost:5173"]
`), 0o644))
	t.Setenv("HWP2MD_CONVERSION_CLASSIFIER_MAX_HEADING_TOKENS", "5")

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	v.SetEnvPrefix("HWP2MD")
	v.SetEnvKeyReplacer(envReplacer())
	v.AutomaticEnv()
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Conversion.Workers)
	assert.Equal(t, ".다", cfg.Conversion.Classifier.Terminals)
	assert.Equal(t, 5, cfg.Conversion.Classifier.MaxHeadingTokens)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
}

func TestFormatHistory(t *testing.T) {
	var buf bytes.Buffer
	formatHistory(&buf, nil)
	assert.Contains(t, buf.String(), "No conversions recorded.")

	buf.Reset()
	formatHistory(&buf, []types.Record{
		{Source: "a.hwp", Outcome: "converted", Headings: 3, Paragraphs: 7, CreatedAt: time.Now()},
		{Source: "b.hwp", Outcome: "failed", Error: "cfb: invalid container", CreatedAt: time.Now()},
	})
	out := buf.String()
	assert.Contains(t, out, "a.hwp")
	assert.Contains(t, out, "b.hwp (cfb: invalid container)")
}

func TestWriteOne(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.hwp")
	require.NoError(t, os.WriteFile(good, cfbtest.Build(
		cfbtest.File{Path: []string{"BodyText", "Section0"}, Data: cfbtest.UTF16LE("Introduction")},
	).Data, 0o644))
	bad := filepath.Join(dir, "bad.hwp")
	require.NoError(t, os.WriteFile(bad, []byte("not a compound file"), 0o644))

	tests := []struct {
		name     string
		input    string
		wantErr  bool
		wantFile bool
	}{
		{name: "converted", input: good, wantFile: true},
		{name: "invalid container", input: bad, wantErr: true},
		{name: "missing input", input: filepath.Join(dir, "absent.hwp"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "out.md")
			var stdout, stderr bytes.Buffer
			err := writeOne(context.Background(), convert.New(types.ConversionConfig{}), nil, tt.input, out, &stdout, &stderr)

			if tt.wantErr {
				require.Error(t, err)
				assert.NoFileExists(t, out)
				return
			}
			require.NoError(t, err)
			data, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, "## Introduction\n", string(data))
			assert.Empty(t, stdout.String())
		})
	}
}

func TestWriteOne_Stdout(t *testing.T) {
	in := filepath.Join(t.TempDir(), "a.hwp")
	require.NoError(t, os.WriteFile(in, cfbtest.Build(
		cfbtest.File{Path: []string{"BodyText", "Section0"}, Data: cfbtest.UTF16LE("Introduction")},
	).Data, 0o644))

	var stdout, stderr bytes.Buffer
	require.NoError(t, writeOne(context.Background(), convert.New(types.ConversionConfig{}), nil, in, "", &stdout, &stderr))
	assert.Equal(t, "## Introduction\n", stdout.String())
}

func TestFormatRecord(t *testing.T) {
	store, err := history.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	rec := types.Record{ID: "rec-1", Source: "b.hwp", SHA256: "abc", Outcome: "failed", Error: "cfb: invalid container"}
	require.NoError(t, store.Record(ctx, rec))

	got, err := store.Get(ctx, "rec-1")
	require.NoError(t, err)

	var buf bytes.Buffer
	formatRecord(&buf, got)
	out := buf.String()
	assert.Contains(t, out, "ID:         rec-1")
	assert.Contains(t, out, "Outcome:    failed")
	assert.Contains(t, out, "Error:      cfb: invalid container")

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, history.ErrNotFound)
}

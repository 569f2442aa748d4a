// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the hwp2md CLI.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/hwp2md/internal/convert"
	"github.com/pdiddy/hwp2md/internal/history"
	"github.com/pdiddy/hwp2md/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the hwp2md CLI.
var rootCmd = &cobra.Command{
	Use:   "hwp2md",
	Short: "Convert HWP documents to Markdown",
	Long: `hwp2md extracts the body text of HWP v5 documents and writes it as
Markdown, inferring headings from line shape.

Use convert for local files or URLs, serve for the HTTP upload API, and
history to review past conversions.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./hwp2md.yaml or ~/.config/hwp2md/hwp2md.yaml)")
	rootCmd.PersistentFlags().Bool("history", false, "record conversions in the history database")
	rootCmd.PersistentFlags().String("history-dir", "", "directory holding hwp2md.db (default .hwp2md)")

	viper.BindPFlag("history.enabled", rootCmd.PersistentFlags().Lookup("history"))
	viper.BindPFlag("history.dir", rootCmd.PersistentFlags().Lookup("history-dir"))
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Ignoring .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("hwp2md")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "hwp2md"))
		}
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("HWP2MD")
	viper.SetEnvKeyReplacer(envReplacer())
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// envReplacer maps config keys to environment names:
// conversion.workers becomes HWP2MD_CONVERSION_WORKERS.
func envReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// setDefaults registers every config key so environment variables such as
// HWP2MD_CONVERSION_WORKERS are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	var cfg types.Config
	cfg.Conversion = cfg.Conversion.WithDefaults()
	cfg.Server = cfg.Server.WithDefaults()
	cfg.History = cfg.History.WithDefaults()

	cl := cfg.Conversion.Classifier
	v.SetDefault("conversion.classifier.max_heading_runes", cl.MaxHeadingRunes)
	v.SetDefault("conversion.classifier.max_heading_tokens", cl.MaxHeadingTokens)
	v.SetDefault("conversion.classifier.terminals", cl.Terminals)
	v.SetDefault("conversion.classifier.heading_level", cl.HeadingLevel)
	v.SetDefault("conversion.inflate", cfg.Conversion.Inflate)
	v.SetDefault("conversion.max_inflated_size", cfg.Conversion.MaxInflatedSize)
	v.SetDefault("conversion.normalize", false)
	v.SetDefault("conversion.frontmatter", false)
	v.SetDefault("conversion.overwrite", false)
	v.SetDefault("conversion.workers", cfg.Conversion.Workers)
	v.SetDefault("conversion.max_input_size", cfg.Conversion.MaxInputSize)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.max_upload_bytes", cfg.Server.MaxUploadBytes)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.dir", cfg.History.Dir)
}

// loadConfig decodes the merged flag, env, file and default settings.
func loadConfig(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Conversion = cfg.Conversion.WithDefaults()
	cfg.Server = cfg.Server.WithDefaults()
	cfg.History = cfg.History.WithDefaults()
	return cfg, nil
}

// openRecorder opens the history store when recording is enabled and
// returns a nil Recorder otherwise. The returned closer is always safe to
// call.
func openRecorder(cfg types.HistoryConfig) (convert.Recorder, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}
	store, err := history.Open(cfg.Dir)
	if err != nil {
		return nil, func() {}, err
	}
	return store, func() { store.Close() }, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/hwp2md/internal/convert"
	"github.com/pdiddy/hwp2md/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP conversion API",
	Long: `Serve starts an HTTP server with two upload endpoints:

  POST /api/convert        multipart field "file", one .hwp document
  POST /api/convert-batch  multipart field "files", several documents

Both answer with JSON carrying the Markdown. GET /healthz reports liveness.
The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().Int64("max-upload", 0, "maximum request body in bytes (default 50 MiB)")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "CORS origins allowed to call the API")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.max_upload_bytes", serveCmd.Flags().Lookup("max-upload"))
	viper.BindPFlag("server.allowed_origins", serveCmd.Flags().Lookup("allowed-origins"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	rec, closeRec, err := openRecorder(cfg.History)
	if err != nil {
		return err
	}
	defer closeRec()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.Server, convert.New(cfg.Conversion), rec, logger)
	return srv.ListenAndServe(ctx)
}

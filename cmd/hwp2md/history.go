// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/hwp2md/internal/history"
	"github.com/pdiddy/hwp2md/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent conversions",
	Long: `History lists conversions recorded in the history database, newest
first. Recording is enabled with --history or history.enabled in the config
file.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one recorded conversion",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of records")
	historyCmd.Flags().Bool("json", false, "output records as JSON")
	historyCmd.Flags().Bool("yaml", false, "output records as YAML")

	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory(cmd *cobra.Command) (*history.Store, context.Context, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	store, err := history.Open(cfg.History.Dir)
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return store, ctx, nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, ctx, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(ctx, args[0])
	if err != nil {
		return err
	}
	formatRecord(cmd.OutOrStdout(), rec)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, ctx, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := store.List(ctx, limit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return history.Export(w, records, history.FormatJSON)
	}
	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		return history.Export(w, records, history.FormatYAML)
	}
	formatHistory(w, records)
	return nil
}

func formatHistory(w io.Writer, records []types.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No conversions recorded.")
		return
	}

	fmt.Fprintf(w, "%-36s  %-20s  %-9s  %-8s  %-10s  %s\n", "ID", "When", "Outcome", "Headings", "Paragraphs", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for _, r := range records {
		source := r.Source
		if r.Error != "" {
			source += " (" + r.Error + ")"
		}
		fmt.Fprintf(w, "%-36s  %-20s  %-9s  %-8d  %-10d  %s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Outcome, r.Headings, r.Paragraphs, source)
	}
}

func formatRecord(w io.Writer, r types.Record) {
	fmt.Fprintf(w, "ID:         %s\n", r.ID)
	fmt.Fprintf(w, "Source:     %s\n", r.Source)
	fmt.Fprintf(w, "SHA-256:    %s\n", r.SHA256)
	fmt.Fprintf(w, "When:       %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Outcome:    %s\n", r.Outcome)
	fmt.Fprintf(w, "Headings:   %d\n", r.Headings)
	fmt.Fprintf(w, "Paragraphs: %d\n", r.Paragraphs)
	fmt.Fprintf(w, "Warnings:   %d\n", r.Warnings)
	if r.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", r.Error)
	}
}

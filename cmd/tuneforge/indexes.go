package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icewall905/tuneforge/internal/store"
)

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create the lookup indexes expansion relies on",
	RunE:  runIndexes,
}

func runIndexes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Database.Path, store.Options{Logger: newLogger(cfg, os.Stderr)})
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	created, err := db.EnsureIndexes(ctx)
	if err != nil {
		return err
	}
	existing, err := db.ListIndexes(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{"created": created, "indexes": existing})
	}
	fmt.Fprintf(out, "Created %d index(es)\n", len(created))
	for _, name := range existing {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return nil
}

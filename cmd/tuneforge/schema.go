package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/icewall905/tuneforge/internal/store"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Check the catalog's feature table and coverage",
	RunE:  runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
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
	valid, missing := db.ValidateSchema(ctx)

	var withFeatures, total int
	if valid {
		withFeatures, total, err = db.Coverage(ctx)
		if err != nil {
			return fmt.Errorf("failed to compute coverage: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{
			"valid":                valid,
			"missing":              missing,
			"tracks_with_features": withFeatures,
			"total_tracks":         total,
		})
	}

	if !valid {
		fmt.Fprintf(out, "Schema:   INVALID, missing columns: %s\n", strings.Join(missing, ", "))
		return nil
	}
	fmt.Fprintln(out, "Schema:   ok")
	pct := 0.0
	if total > 0 {
		pct = 100 * float64(withFeatures) / float64(total)
	}
	fmt.Fprintf(out, "Coverage: %d of %d tracks have audio features (%.1f%%)\n", withFeatures, total, pct)
	return nil
}

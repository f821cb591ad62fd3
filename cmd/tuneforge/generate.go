package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/icewall905/tuneforge/internal/app"
	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/expansion"
)

var (
	genTarget      int
	genThreshold   float64
	genMaxAttempts int
	genHint        string
	genModel       string
)

var generateCmd = &cobra.Command{
	Use:   "generate <seed-track-id>",
	Short: "Run one expansion job in the foreground and print the playlist",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().IntVarP(&genTarget, "count", "n", 20, "number of tracks to find")
	generateCmd.Flags().Float64VarP(&genThreshold, "threshold", "t", -1, "maximum weighted distance (default from config)")
	generateCmd.Flags().IntVar(&genMaxAttempts, "max-attempts", 0, "suggestion rounds before giving up (default from config)")
	generateCmd.Flags().StringVar(&genHint, "hint", "", "free-text likes or mood passed to the suggestion model")
	generateCmd.Flags().StringVar(&genModel, "model", "", "override the suggestion model")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	var seedID int64
	if _, err := fmt.Sscanf(args[0], "%d", &seedID); err != nil {
		return fmt.Errorf("invalid seed track id %q", args[0])
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cfg, newLogger(cfg, os.Stderr), app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer closeCancel()
		_ = a.Close(closeCtx)
	}()

	req := expansion.StartRequest{
		SeedTrackID: seedID,
		TargetCount: genTarget,
		MaxAttempts: genMaxAttempts,
		Params:      domain.SuggestionParams{Hint: genHint, Model: genModel},
	}
	if genThreshold >= 0 {
		req.Threshold = &genThreshold
	}

	id, err := a.Registry.Start(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.ErrOrStderr()
	ticker := time.NewTicker(constants.ProgressUpdateFreq)
	defer ticker.Stop()

	done := make(chan error, 1)
	go func() { done <- a.Registry.Wait(context.Background(), id) }()

wait:
	for {
		select {
		case <-done:
			break wait
		case <-ctx.Done():
			fmt.Fprintln(out, "Stopping...")
			_ = a.Registry.Stop(context.Background(), id)
			<-done
			break wait
		case <-ticker.C:
			if s, err := a.Registry.Status(context.Background(), id); err == nil && !jsonOutput {
				fmt.Fprintf(out, "[%s] %d/%d tracks, attempt %d/%d\n", s.CurrentStep, s.AcceptedCount(), s.TargetCount, s.Attempts, s.MaxAttempts)
			}
		}
	}

	snap, err := a.Registry.Status(context.Background(), id)
	if err != nil {
		return err
	}
	return printPlaylist(cmd, snap)
}

func printPlaylist(cmd *cobra.Command, snap domain.JobSnapshot) error {
	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, snap)
	}

	if snap.Status == domain.JobStatusFailed {
		return fmt.Errorf("job failed: %s", snap.Error)
	}

	fmt.Fprintf(w, "Job %s %s: %d of %d tracks in %d attempts (threshold %.3f)\n",
		snap.ID, snap.Status, snap.AcceptedCount(), snap.TargetCount, snap.Attempts, snap.Threshold)
	for i, a := range snap.Accepted {
		fmt.Fprintf(w, "%3d. %-50s %.3f\n", i+1, a.Track.Display(), a.Distance)
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	magazine "github.com/aldomucciarone59-web/mute-magazine"
)

var sweepMaxAge time.Duration

// errNoSharedTracker is returned by drafts sweep without MUTE_REDIS_URL: the
// in-memory tracker of a fresh process has nothing to sweep.
var errNoSharedTracker = errors.New("drafts sweep needs the shared draft tracker: set MUTE_REDIS_URL")

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Manage editing drafts",
}

var draftsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete uploads of abandoned editing drafts",
	Long: `Delete the pending uploads of every draft idle for longer than --max-age
(default MUTE_DRAFT_TTL). Requires the shared tracker (MUTE_REDIS_URL).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := magazine.LoadConfig(envFile)
		if err != nil {
			return err
		}
		if cfg.RedisURL == "" {
			return errNoSharedTracker
		}
		app, err := initApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		maxAge := sweepMaxAge
		if maxAge == 0 {
			maxAge = app.Config.DraftTTL
		}
		rep, err := app.Articles.SweepDrafts(cmd.Context(), maxAge)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "swept %d drafts, deleted %d uploads\n", rep.Sessions, rep.Deleted)
		return nil
	},
}

func init() {
	draftsSweepCmd.Flags().DurationVar(&sweepMaxAge, "max-age", 0, "idle time after which a draft is swept")
	draftsCmd.AddCommand(draftsSweepCmd)
}

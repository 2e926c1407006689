// Package main provides the mute CLI: the HTTP server and maintenance
// commands for hosted media and editing drafts.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	magazine "github.com/aldomucciarone59-web/mute-magazine"
)

// envFile is set by the --env-file flag.
var envFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mute",
	Short: "Mute magazine backend",
	Long: `mute serves the magazine API and keeps the media hosted on Cloudinary
consistent with the saved articles.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", magazine.EnvOr("MUTE_ENV_FILE", ".env"), "dotenv file loaded before the environment is read")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mediaCmd)
	rootCmd.AddCommand(draftsCmd)
}

// openApp loads the configuration and initializes the app backends.
func openApp(ctx context.Context) (*magazine.App, error) {
	cfg, err := magazine.LoadConfig(envFile)
	if err != nil {
		return nil, err
	}
	return initApp(ctx, cfg)
}

func initApp(ctx context.Context, cfg magazine.SiteConfig) (*magazine.App, error) {
	app := magazine.New(cfg)
	if err := app.Init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

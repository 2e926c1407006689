package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage hosted media",
}

var mediaDeleteCmd = &cobra.Command{
	Use:   "delete <url>...",
	Short: "Delete hosted media by delivery URL",
	Long: `Delete hosted media by delivery URL. URLs that are not hosted on the
configured account are skipped. Deleting an absent object succeeds.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		out := cmd.OutOrStdout()
		var failed int
		for _, url := range args {
			ok, err := app.Media.Delete(cmd.Context(), url)
			switch {
			case err != nil:
				failed++
				fmt.Fprintf(out, "failed   %s: %v\n", url, err)
			case ok:
				fmt.Fprintf(out, "deleted  %s\n", url)
			default:
				fmt.Fprintf(out, "skipped  %s\n", url)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d deletions failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	mediaCmd.AddCommand(mediaDeleteCmd)
}

// internal/cli/root.go
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/harvest/internal/app"
	"github.com/law-makers/harvest/internal/config"
)

// shutdownTimeout bounds Application.Close after a command returns
const shutdownTimeout = 5 * time.Second

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest item records from infinite-scroll listings",
	Long: `Harvest drives a browser through an infinite-scroll listing, such as a
Google Maps search, and fetches every discovered item page in parallel while
the listing is still scrolling.

Each item is retried with backoff; items that never succeed are reported
as failed instead of stopping the run.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command with ctx, which is cancelled on interrupt.
// It returns the command error so main can choose the exit code.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	config.RegisterFlags(rootCmd)

	rootCmd.Flags().BoolP("help", "h", false, "Help for harvest")
	rootCmd.Flags().Bool("version", false, "Version for harvest")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpFunc(customHelpFunc)
	rootCmd.SetUsageFunc(customUsageFunc)

	// The application is created only for commands that run, not for help
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetAppFromCmd(cmd) != nil {
			return nil
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		SetApp(cmd, a)
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		a := GetAppFromCmd(cmd)
		if a == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.Close(ctx)
		SetApp(cmd, nil)
	}
}

package cli

import (
	"log/slog"

	"dialer-platform/pkg/logger"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "dialer",
	Short: "Manual outbound dialer for the voice platform",
	Long: `dialer places manual outbound calls through the voice platform.

Place a call:
  dialer call +14155551234

Check a number without dialing:
  dialer validate "+1 (415) 555-1234"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		env := "production"
		if verbose {
			env = "dev"
		}
		slog.SetDefault(logger.New(env))
	},
}

// Execute runs the root command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

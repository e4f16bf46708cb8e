package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "ctxcache",
		Short:         "ctxcache: chat against a local engine through an incremental context cache",
		Long:          "ctxcache keeps a conversation log and an engine-resident token sequence in sync, reusing the longest common prefix across turns so each prompt only pays for what actually changed.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		if verbose {
			app.logLevel.Set(slog.LevelDebug)
		}
	}
	rootCmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		_ = app.close()
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newChatCmd(app),
		newEstimateCmd(app),
		newWindowCmd(app),
		newTranscriptsCmd(app),
	)

	return rootCmd
}

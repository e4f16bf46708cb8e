package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWindowCmd(app *app) *cobra.Command {
	var transcript string

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Show which turns the next prompt would keep in the context window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conv, err := loadConversation(cmd, app, transcript)
			if err != nil {
				return err
			}

			report, err := app.service.PlanWindow(cmd.Context(), conv, app.requestFromConfig())
			if err != nil {
				return err
			}

			rendered, err := app.windowRenderer(report)
			if err != nil {
				return fmt.Errorf("render window: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().StringVarP(&transcript, "transcript", "t", "default", "Transcript name to plan against")

	return cmd
}

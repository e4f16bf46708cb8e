package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTranscriptsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcripts",
		Short: "Manage saved transcripts",
	}

	cmd.AddCommand(
		newTranscriptsListCmd(app),
		newTranscriptsShowCmd(app),
		newTranscriptsDeleteCmd(app),
	)

	return cmd
}

func newTranscriptsListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := app.transcripts.List(cmd.Context())
			if err != nil {
				return err
			}

			for _, info := range infos {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d turns\t%s\n",
					info.Name, info.Turns, info.UpdatedAt.Format("2006-01-02 15:04"))
			}

			return nil
		},
	}
}

func newTranscriptsShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print the turns of a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := app.transcripts.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			for _, turn := range conv.Turns() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", turn.Role, turn.Text)
			}

			return nil
		},
	}
}

func newTranscriptsDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.transcripts.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return err
		},
	}
}

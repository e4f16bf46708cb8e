package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ctxforge/ctxcache/internal/domain"
)

func newEstimateCmd(app *app) *cobra.Command {
	var transcript string
	var draft string

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the token cost of the next prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conv, err := loadConversation(cmd, app, transcript)
			if err != nil {
				return err
			}

			if draft != "" {
				conv.Append(domain.RoleUser, draft, app.now())
			}

			result, err := app.service.EstimatePromptTokens(cmd.Context(), conv, app.requestFromConfig())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "prompt tokens: %d\n", result.PromptTokens)
			_, _ = fmt.Fprintf(out, "window turns: %d\n", result.WindowTurns)
			_, _ = fmt.Fprintf(out, "budget: %d of %d\n", result.Budget, result.Capacity)
			if result.Approximate {
				_, _ = fmt.Fprintln(out, "estimate is approximate: no tokenizer available")
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&transcript, "transcript", "t", "default", "Transcript name to estimate against")
	cmd.Flags().StringVarP(&draft, "message", "m", "", "Draft user message to include in the estimate")

	return cmd
}

func loadConversation(cmd *cobra.Command, app *app, name string) (*domain.Conversation, error) {
	conv, err := app.transcripts.Load(cmd.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrTranscriptNotFound) {
			return domain.NewConversation(), nil
		}
		return nil, err
	}

	return conv, nil
}

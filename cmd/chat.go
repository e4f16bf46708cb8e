package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ctxforge/ctxcache/internal/application"
	"github.com/ctxforge/ctxcache/internal/domain"
)

func newChatCmd(app *app) *cobra.Command {
	var (
		transcript   string
		message      string
		plain        bool
		fresh        bool
		continueLast bool
		maxTokens    int
		systemText   string
		template     string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the engine, reusing the resident cache across turns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if continueLast && message != "" {
				return errors.New("cannot combine --continue with --message")
			}

			request := app.requestFromConfig()
			request.MaxGenerationTokens = maxTokens
			request.SystemText = systemText
			request.Template = template

			session, err := newChatSession(cmd.Context(), app, transcript, request, fresh)
			if err != nil {
				return err
			}

			switch {
			case continueLast:
				return session.runOnce(cmd, "", true)
			case message != "":
				return session.runOnce(cmd, message, false)
			case plain:
				return session.runPlain(cmd)
			default:
				return session.runTUI(cmd)
			}
		},
	}

	cmd.Flags().StringVarP(&transcript, "transcript", "t", "default", "Transcript name to load and save")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Send a single message and exit")
	cmd.Flags().BoolVar(&plain, "plain", false, "Line-based mode reading messages from stdin")
	cmd.Flags().BoolVar(&fresh, "new", false, "Start a fresh conversation, discarding the resident cache")
	cmd.Flags().BoolVar(&continueLast, "continue", false, "Continue the last assistant turn instead of sending a message")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", app.config.MaxTokens, "Generation token limit (0 for unbounded)")
	cmd.Flags().StringVar(&systemText, "system", app.config.SystemText, "System text prepended to the prompt")
	cmd.Flags().StringVar(&template, "template", app.config.Template, "Prompt template (chatml or instruct)")

	return cmd
}

type chatSession struct {
	app     *app
	name    string
	conv    *domain.Conversation
	request application.GenerationRequest
	send    func(msg any)
}

func newChatSession(ctx context.Context, app *app, name string, request application.GenerationRequest, fresh bool) (*chatSession, error) {
	session := &chatSession{
		app:     app,
		name:    name,
		request: request,
	}

	if fresh {
		app.service.DiscardResident()
		session.conv = domain.NewConversation()
		return session, nil
	}

	conv, err := app.transcripts.Load(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrTranscriptNotFound) {
			session.conv = domain.NewConversation()
			return session, nil
		}
		return nil, err
	}

	session.conv = conv
	return session, nil
}

// runTurn appends the user message, runs one generation turn and persists the
// transcript. Cancelled turns are saved with their partial reply; failed ones
// are not saved at all, so a retry starts from the last good state.
func (s *chatSession) runTurn(ctx context.Context, text string, continuing bool, onProgress application.ProgressFunc, onDelta application.DeltaFunc) (application.TurnOutcome, error) {
	if !continuing {
		s.conv.Append(domain.RoleUser, text, s.app.now())
	}

	request := s.request
	request.Continuing = continuing

	outcome, err := s.app.service.RunGenerationTurn(ctx, s.conv, request, onProgress, onDelta)
	if err != nil {
		return outcome, err
	}

	if err := s.app.transcripts.Save(context.Background(), s.name, s.conv); err != nil {
		return outcome, fmt.Errorf("save transcript: %w", err)
	}

	return outcome, nil
}

func (s *chatSession) runOnce(cmd *cobra.Command, text string, continuing bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	outcome, err := s.runTurn(ctx, text, continuing, nil, func(delta string) {
		_, _ = fmt.Fprint(out, delta)
	})
	_, _ = fmt.Fprintln(out)
	if err != nil {
		return err
	}

	if outcome.State == application.TurnCancelled {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "generation cancelled, partial reply kept")
	}

	return nil
}

func (s *chatSession) runPlain(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	_, _ = fmt.Fprint(cmd.ErrOrStderr(), "> ")
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			_, _ = fmt.Fprint(cmd.ErrOrStderr(), "> ")
			continue
		}

		outcome, err := s.runTurn(ctx, text, false, nil, func(delta string) {
			_, _ = fmt.Fprint(out, delta)
		})
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return err
		}
		if outcome.State == application.TurnCancelled {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "generation cancelled, partial reply kept")
			return nil
		}

		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "> ")
	}

	return scanner.Err()
}

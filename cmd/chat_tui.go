package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ctxforge/ctxcache/internal/application"
	"github.com/ctxforge/ctxcache/internal/domain"
)

type chatDeltaMsg string

type chatProgressMsg application.Progress

type chatTurnDoneMsg struct {
	outcome application.TurnOutcome
	err     error
}

type chatStyles struct {
	title     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	stage     lipgloss.Style
	errText   lipgloss.Style
	help      lipgloss.Style
}

func newChatStyles() chatStyles {
	return chatStyles{
		title:     lipgloss.NewStyle().Bold(true),
		user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		stage:     lipgloss.NewStyle().Faint(true),
		errText:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		help:      lipgloss.NewStyle().Faint(true),
	}
}

type chatModel struct {
	session  *chatSession
	styles   chatStyles
	input    textinput.Model
	spin     spinner.Model
	history  []string
	reply    string
	stage    string
	err      error
	replying bool
	cancel   context.CancelFunc
}

func newChatModel(session *chatSession) chatModel {
	styles := newChatStyles()

	input := textinput.New()
	input.Placeholder = "Type a message"
	input.Focus()
	input.Width = 60

	spin := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	history := make([]string, 0, session.conv.Len())
	for _, turn := range session.conv.Turns() {
		switch turn.Role {
		case domain.RoleUser:
			history = append(history, styles.user.Render("you: ")+turn.Text)
		case domain.RoleAssistant:
			if text := turn.ResponseText(); text != "" {
				history = append(history, styles.assistant.Render(text))
			}
		}
	}

	return chatModel{
		session: session,
		styles:  styles,
		input:   input,
		spin:    spin,
		history: history,
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.replying && m.cancel != nil {
				m.cancel()
				return m, nil
			}
			return m, tea.Quit
		case "enter":
			if m.replying {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}

			m.history = append(m.history, m.styles.user.Render("you: ")+text)
			m.input.Reset()
			m.replying = true
			m.reply = ""
			m.stage = ""
			m.err = nil

			ctx, cancel := context.WithCancel(context.Background())
			m.cancel = cancel
			return m, tea.Batch(m.spin.Tick, m.turnCmd(ctx, text))
		}
	case spinner.TickMsg:
		if !m.replying {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case chatDeltaMsg:
		m.reply += string(msg)
		return m, nil
	case chatProgressMsg:
		m.stage = string(msg.Stage)
		return m, nil
	case chatTurnDoneMsg:
		m.replying = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.reply = ""
		m.stage = ""
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		line := m.styles.assistant.Render(msg.outcome.Text)
		if msg.outcome.State == application.TurnCancelled {
			line += " " + m.styles.stage.Render("[cancelled]")
		}
		m.history = append(m.history, line)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) turnCmd(ctx context.Context, text string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		outcome, err := session.runTurn(ctx, text, false,
			func(progress application.Progress) { session.send(chatProgressMsg(progress)) },
			func(delta string) { session.send(chatDeltaMsg(delta)) },
		)
		return chatTurnDoneMsg{outcome: outcome, err: err}
	}
}

func (m chatModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render(fmt.Sprintf("ctxcache chat (%s)", m.session.name)))
	b.WriteString("\n\n")

	for _, line := range m.history {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.replying {
		if m.reply != "" {
			b.WriteString(m.styles.assistant.Render(m.reply))
			b.WriteString("\n")
		}
		stage := m.stage
		if stage == "" {
			stage = "working"
		}
		b.WriteString(fmt.Sprintf("%s %s\n", m.spin.View(), m.styles.stage.Render(stage)))
	} else {
		if m.err != nil {
			b.WriteString(m.styles.errText.Render("error: " + m.err.Error()))
			b.WriteString("\n")
		}
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	b.WriteString(m.styles.help.Render("enter: send, esc: cancel or quit, ctrl+c: quit"))
	return b.String()
}

func (s *chatSession) runTUI(cmd *cobra.Command) error {
	p := tea.NewProgram(
		newChatModel(s),
		tea.WithContext(cmd.Context()),
	)
	s.send = func(msg any) {
		p.Send(msg)
	}

	_, err := p.Run()
	return err
}

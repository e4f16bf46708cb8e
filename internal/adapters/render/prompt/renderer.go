package prompt

import (
	"fmt"
	"strings"

	"github.com/ctxforge/ctxcache/internal/domain"
	"github.com/ctxforge/ctxcache/internal/ports"
)

const (
	TemplateChatML   = "chatml"
	TemplateInstruct = "instruct"
)

// Renderer flattens a turn window into a single prompt string using a named
// chat template. Assistant turns are rendered with reasoning stripped; when
// continuingLastTurn is set the final assistant block is left open so the
// engine appends to it instead of starting a new one.
type Renderer struct{}

var _ ports.PromptRenderer = Renderer{}

func NewRenderer() Renderer {
	return Renderer{}
}

func (Renderer) Render(turns []domain.Turn, systemText, template string, continuingLastTurn bool) (string, error) {
	switch template {
	case TemplateChatML, "":
		return renderChatML(turns, systemText, continuingLastTurn)
	case TemplateInstruct:
		return renderInstruct(turns, systemText, continuingLastTurn)
	default:
		return "", fmt.Errorf("unknown prompt template %q", template)
	}
}

func renderChatML(turns []domain.Turn, systemText string, continuing bool) (string, error) {
	var b strings.Builder
	if systemText != "" {
		b.WriteString("<|im_start|>system\n")
		b.WriteString(strings.TrimSpace(systemText))
		b.WriteString("<|im_end|>\n")
	}
	for i, turn := range turns {
		name, err := chatMLRole(turn.Role)
		if err != nil {
			return "", err
		}
		b.WriteString("<|im_start|>")
		b.WriteString(name)
		b.WriteString("\n")
		b.WriteString(turnText(turn))
		if continuing && i == len(turns)-1 && turn.Role == domain.RoleAssistant {
			return b.String(), nil
		}
		b.WriteString("<|im_end|>\n")
	}
	b.WriteString("<|im_start|>assistant\n")
	return b.String(), nil
}

func renderInstruct(turns []domain.Turn, systemText string, continuing bool) (string, error) {
	var b strings.Builder
	if systemText != "" {
		b.WriteString(strings.TrimSpace(systemText))
		b.WriteString("\n\n")
	}
	for i, turn := range turns {
		header, err := instructHeader(turn.Role)
		if err != nil {
			return "", err
		}
		b.WriteString(header)
		b.WriteString("\n")
		b.WriteString(turnText(turn))
		if continuing && i == len(turns)-1 && turn.Role == domain.RoleAssistant {
			return b.String(), nil
		}
		b.WriteString("\n\n")
	}
	b.WriteString("### Response:\n")
	return b.String(), nil
}

func chatMLRole(role domain.Role) (string, error) {
	switch role {
	case domain.RoleSystem:
		return "system", nil
	case domain.RoleUser:
		return "user", nil
	case domain.RoleAssistant:
		return "assistant", nil
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}

func instructHeader(role domain.Role) (string, error) {
	switch role {
	case domain.RoleSystem:
		return "### System:", nil
	case domain.RoleUser:
		return "### Instruction:", nil
	case domain.RoleAssistant:
		return "### Response:", nil
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}

func turnText(turn domain.Turn) string {
	if turn.Role == domain.RoleAssistant {
		return turn.ResponseText()
	}
	return strings.TrimSpace(turn.Text)
}

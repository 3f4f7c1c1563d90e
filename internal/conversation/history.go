package conversation

// History is the ordered, append-only list of turns of one session. The
// leading system turn is set when the history is created and never removed.
type History struct {
	Messages []ChatMessage `json:"messages"`
}

// NewHistory starts a history with the given system prompt.
func NewHistory(systemPrompt string) History {
	h := History{}
	if systemPrompt != "" {
		h.Messages = append(h.Messages, ChatMessage{Role: ChatRoleSystem, Content: systemPrompt})
	}
	return h
}

func (h *History) AppendUser(text string) {
	h.Messages = append(h.Messages, ChatMessage{Role: ChatRoleUser, Content: text})
}

func (h *History) AppendAssistant(text string) {
	h.Messages = append(h.Messages, ChatMessage{Role: ChatRoleAssistant, Content: text})
}

// Turns returns a copy of the whole history.
func (h *History) Turns() []ChatMessage {
	out := make([]ChatMessage, len(h.Messages))
	copy(out, h.Messages)
	return out
}

// Visible returns the user and assistant turns, as shown to the user.
func (h *History) Visible() []ChatMessage {
	out := make([]ChatMessage, 0, len(h.Messages))
	for _, m := range h.Messages {
		if m.Role != ChatRoleSystem {
			out = append(out, m)
		}
	}
	return out
}

// ContextWindow returns the leading system turn followed by the most recent
// max non-system turns. A non-positive max returns the whole history.
func (h *History) ContextWindow(max int) []ChatMessage {
	if max <= 0 {
		return h.Turns()
	}
	var system []ChatMessage
	start := 0
	for start < len(h.Messages) && h.Messages[start].Role == ChatRoleSystem {
		system = append(system, h.Messages[start])
		start++
	}
	rest := h.Messages[start:]
	if len(rest) > max {
		rest = rest[len(rest)-max:]
	}
	out := make([]ChatMessage, 0, len(system)+len(rest))
	out = append(out, system...)
	return append(out, rest...)
}

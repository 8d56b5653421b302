package conversation

import (
	"strings"

	"github.com/elliotchance/pie/v2"
	"github.com/xaenox/schedule-bot/internal/models"
)

const (
	ContextHeader    = "=== CONTESTO CONVERSAZIONE PRECEDENTE ==="
	ContextFooter    = "=== FINE CONTESTO ==="
	NoContext        = "Nessuna conversazione precedente."
	CurrentMessage   = "MESSAGGIO ATTUALE: "
	contextSeparator = "\n\n\n"
)

var roleLabels = map[models.Role]string{
	models.RoleUser:      "Utente",
	models.RoleAssistant: "Assistente",
	models.RoleSystem:    "Sistema",
}

// RenderContext formats messages as the transcript prepended to the next
// user message.
func RenderContext(messages []models.Message) string {
	if len(messages) == 0 {
		return NoContext
	}

	lines := pie.Map(messages, func(m models.Message) string {
		return "[" + m.Timestamp.Format("15:04") + "] " + roleLabels[m.Role] + ": " + m.Content
	})

	var b strings.Builder
	b.WriteString(ContextHeader)
	for _, line := range lines {
		b.WriteByte('\n')
		b.WriteString(line)
	}
	b.WriteByte('\n')
	b.WriteString(ContextFooter)
	return b.String()
}

// Enrich prepends the rendered context to the incoming message.
func Enrich(context, message string) string {
	return context + contextSeparator + CurrentMessage + message
}

// tail returns the last n messages, or all of them when n <= 0.
func tail(messages []models.Message, n int) []models.Message {
	if n <= 0 || n >= len(messages) {
		return messages
	}
	return messages[len(messages)-n:]
}

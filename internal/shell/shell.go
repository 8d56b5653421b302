// Package shell is an interactive line-based front end for the scheduling
// assistant.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/xaenox/schedule-bot/internal/agent"
	"github.com/xaenox/schedule-bot/internal/conversation"
	"github.com/xaenox/schedule-bot/internal/models"
	"go.uber.org/zap"
)

const (
	prompt   = "\n👤 Tu: "
	greeting = "Ciao! Sono l'assistente virtuale per la gestione appuntamenti.\nCome posso aiutarti oggi?"
	goodbye  = "👋 Arrivederci e buona giornata!"

	historyLimit = 10
)

const helpText = `📋 Guida Rapida:

🔸 CREARE APPUNTAMENTO:
   "Vorrei prenotare una consulenza per domani alle 14:30"
   "Prenota un colloquio per giovedì prossimo alle 11"

🔸 COMANDI:
   aiuto   - Mostra questa guida
   /storia - Mostra gli ultimi messaggi
   /dati   - Mostra i dati raccolti nella conversazione
   /reset  - Cancella la conversazione
   esci    - Termina la sessione

💡 Suggerimenti:
- Sii specifico con date e orari
- Specifica il tipo di servizio richiesto
- Indica la tua email per confermare la prenotazione`

var (
	exitWords = map[string]bool{"esci": true, "exit": true, "quit": true, "chiudi": true}
	helpWords = map[string]bool{"aiuto": true, "help": true, "?": true}
)

type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, text string) agent.TurnResult
}

type Shell struct {
	turns     TurnHandler
	store     *conversation.Store
	sessionID string
	logger    *zap.Logger
}

// New starts a fresh session. An empty sessionID is replaced by a random one.
func New(turns TurnHandler, store *conversation.Store, sessionID string, logger *zap.Logger) *Shell {
	if sessionID == "" {
		sessionID = "shell-" + uuid.NewString()
	}
	return &Shell{turns: turns, store: store, sessionID: sessionID, logger: logger}
}

func (s *Shell) SessionID() string {
	return s.sessionID
}

// Run reads one message per line from in until EOF, an exit word or ctx is
// done.
func (s *Shell) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, greeting)

	scanner := bufio.NewScanner(in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		switch {
		case exitWords[lower]:
			fmt.Fprintln(out, goodbye)
			return nil
		case helpWords[lower]:
			fmt.Fprintln(out, helpText)
		case lower == "/storia":
			fmt.Fprintln(out, s.history(ctx))
		case lower == "/dati":
			fmt.Fprintln(out, s.facts(ctx))
		case lower == "/reset":
			fmt.Fprintln(out, s.reset(ctx))
		default:
			fmt.Fprintln(out, "🤖 Assistente: "+s.Once(ctx, line))
		}
	}
}

// Once sends a single message and returns the assistant reply.
func (s *Shell) Once(ctx context.Context, message string) string {
	result := s.turns.HandleTurn(ctx, s.sessionID, message)
	s.logger.Debug("Turn handled",
		zap.String("session_id", s.sessionID),
		zap.String("outcome", string(result.Outcome)))
	return result.Reply
}

func (s *Shell) history(ctx context.Context) string {
	messages, err := s.store.History(ctx, s.sessionID, historyLimit)
	if err != nil {
		s.logger.Error("Failed to get history", zap.Error(err))
		return "❌ Impossibile leggere la cronologia"
	}
	if len(messages) == 0 {
		return "Nessun messaggio nella conversazione."
	}
	return conversation.RenderContext(messages)
}

func (s *Shell) facts(ctx context.Context) string {
	facts, err := s.store.ExtractFacts(ctx, s.sessionID)
	if err != nil {
		s.logger.Error("Failed to extract facts", zap.Error(err))
		return "❌ Impossibile leggere i dati della conversazione"
	}
	return formatFacts(facts)
}

func (s *Shell) reset(ctx context.Context) string {
	if _, err := s.store.DeleteSession(ctx, s.sessionID); err != nil {
		s.logger.Error("Failed to reset session", zap.Error(err))
		return "❌ Impossibile cancellare la conversazione"
	}
	return "🗑 Conversazione cancellata."
}

func formatFacts(f models.ExtractedFacts) string {
	var b strings.Builder
	orDash := func(v string) string {
		if v == "" {
			return "-"
		}
		return v
	}
	fmt.Fprintf(&b, "Nome: %s\n", orDash(f.UserName))
	fmt.Fprintf(&b, "Email: %s\n", orDash(f.UserEmail))
	fmt.Fprintf(&b, "Servizi richiesti: %s\n", orDash(strings.Join(f.ServiceTypes, ", ")))
	fmt.Fprintf(&b, "Appuntamenti creati: %d", f.AppointmentCount)
	return b.String()
}

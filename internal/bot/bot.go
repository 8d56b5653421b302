package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/schedule-bot/internal/agent"
	"github.com/xaenox/schedule-bot/internal/conversation"
	"github.com/xaenox/schedule-bot/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const historyLimit = 5

type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, text string) agent.TurnResult
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type chatState struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

type Bot struct {
	api          *tgbotapi.BotAPI
	sender       sender
	orchestrator TurnHandler
	store        *conversation.Store
	every        time.Duration
	logger       *zap.Logger

	mu    sync.Mutex
	chats map[int64]*chatState
}

func New(token string, orchestrator TurnHandler, store *conversation.Store, every time.Duration, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(api, orchestrator, store, every, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, orchestrator TurnHandler, store *conversation.Store, every time.Duration, logger *zap.Logger) *Bot {
	return &Bot{
		sender:       s,
		orchestrator: orchestrator,
		store:        store,
		every:        every,
		logger:       logger,
		chats:        make(map[int64]*chatState),
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

// SessionID maps a Telegram chat to its conversation session.
func SessionID(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}

func (b *Bot) chat(chatID int64) *chatState {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.chats[chatID]
	if !ok {
		limit := rate.Inf
		if b.every > 0 {
			limit = rate.Every(b.every)
		}
		state = &chatState{limiter: rate.NewLimiter(limit, 3)}
		b.chats[chatID] = state
	}
	return state
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		return
	}

	state := b.chat(message.Chat.ID)
	if !state.limiter.Allow() {
		b.sendErrorMessage(message.Chat.ID, "Stai inviando messaggi troppo velocemente. Attendi qualche secondo.")
		return
	}

	// Turns of the same chat run one at a time.
	state.mu.Lock()
	defer state.mu.Unlock()

	result := b.orchestrator.HandleTurn(ctx, SessionID(message.Chat.ID), content)
	b.logger.Info("Handled turn",
		zap.Int64("chat_id", message.Chat.ID),
		zap.String("outcome", string(result.Outcome)))

	b.sendMessage(message.Chat.ID, result.Reply)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "history":
		b.handleHistory(ctx, message)
	case "facts":
		b.handleFacts(ctx, message)
	case "reset":
		b.handleReset(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Comando sconosciuto. Usa /help per vedere i comandi disponibili.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Benvenuto in ScheduleAI! 📅
Posso prenotare i tuoi appuntamenti scrivendo in linguaggio naturale.

Prova ad esempio: "Vorrei prenotare una consulenza giovedì alle 15:00".
Usa /help per vedere tutti i comandi.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Comandi disponibili:
/start - Avvia il bot
/help - Mostra questo messaggio
/history - Ultimi messaggi della conversazione
/facts - Dati che ho raccolto su di te
/reset - Cancella la conversazione

Scrivimi giorno, ora e tipo di servizio, e la tua email per ricevere l'invito.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleHistory(ctx context.Context, message *tgbotapi.Message) {
	messages, err := b.store.History(ctx, SessionID(message.Chat.ID), historyLimit)
	if err != nil {
		b.logger.Error("Failed to get conversation history",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Non sono riuscito a recuperare la cronologia.")
		return
	}

	if len(messages) == 0 {
		b.sendMessage(message.Chat.ID, "Non ci sono ancora messaggi.")
		return
	}

	b.sendMarkdown(message.Chat.ID, formatHistory(messages))
}

func (b *Bot) handleFacts(ctx context.Context, message *tgbotapi.Message) {
	facts, err := b.store.ExtractFacts(ctx, SessionID(message.Chat.ID))
	if err != nil {
		b.logger.Error("Failed to extract facts",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Non sono riuscito a recuperare i tuoi dati.")
		return
	}

	b.sendMarkdown(message.Chat.ID, formatFacts(facts))
}

func (b *Bot) handleReset(ctx context.Context, message *tgbotapi.Message) {
	if _, err := b.store.DeleteSession(ctx, SessionID(message.Chat.ID)); err != nil {
		b.logger.Error("Failed to delete session",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Non sono riuscito a cancellare la conversazione.")
		return
	}
	b.sendMessage(message.Chat.ID, "Conversazione cancellata. Possiamo ricominciare!")
}

func formatHistory(messages []models.Message) string {
	var sb strings.Builder
	sb.WriteString("*Ultimi messaggi:*\n\n")
	for _, msg := range messages {
		label := "Tu"
		switch msg.Role {
		case models.RoleAssistant:
			label = "ScheduleAI"
		case models.RoleSystem:
			label = "Sistema"
		}
		fmt.Fprintf(&sb, "*%s* _%s_\n%s\n\n",
			escapeMarkdown(label),
			escapeMarkdown(msg.Timestamp.Format("02/01 15:04")),
			escapeMarkdown(msg.Content))
	}
	return sb.String()
}

func formatFacts(facts models.ExtractedFacts) string {
	orDash := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}

	var sb strings.Builder
	sb.WriteString("*I tuoi dati:*\n")
	fmt.Fprintf(&sb, "Nome: %s\n", escapeMarkdown(orDash(facts.UserName)))
	fmt.Fprintf(&sb, "Email: %s\n", escapeMarkdown(orDash(facts.UserEmail)))
	if len(facts.ServiceTypes) > 0 {
		tags := make([]string, len(facts.ServiceTypes))
		for i, s := range facts.ServiceTypes {
			tags[i] = escapeMarkdown("#" + s)
		}
		fmt.Fprintf(&sb, "Servizi: %s\n", strings.Join(tags, " "))
	}
	fmt.Fprintf(&sb, "Appuntamenti creati: %d\n", facts.AppointmentCount)
	if start := facts.LastAppointment["start_time"]; start != "" {
		fmt.Fprintf(&sb, "Ultimo: %s\n", escapeMarkdown(facts.LastAppointment["title"]+" "+start))
	}
	return sb.String()
}

// escapeMarkdown escapes the characters reserved by MarkdownV2.
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send markdown message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

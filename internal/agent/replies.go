package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xaenox/schedule-bot/internal/models"
)

const (
	ReplyEmailRequired = "Per creare l'appuntamento nel calendario ho bisogno della tua email, così posso inviarti l'invito. Puoi indicarmela?"
	ReplyDateRequired  = "Certamente! Posso aiutarti a prenotare un appuntamento. Che tipo di servizio desideri e quando preferiresti?"
	ReplyBookingFailed = "Si è verificato un errore durante la creazione dell'appuntamento. Riprova tra qualche minuto."
)

// Keywords match at the start of a word so "facebook" is not a booking.
var bookingPattern = regexp.MustCompile(`\b(?:prenot|appuntament|fissa|riserv|book|schedul|appointment)`)

var italianWeekdays = [...]string{"domenica", "lunedì", "martedì", "mercoledì", "giovedì", "venerdì", "sabato"}

// IsBookingIntent reports whether the message asks for an appointment.
func IsBookingIntent(text string) bool {
	return bookingPattern.MatchString(strings.ToLower(text))
}

// ChatReply answers a message that is not a booking request.
func ChatReply(text, userName string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "ciao") || strings.Contains(lower, "buongiorno"):
		if userName != "" {
			return "Buongiorno " + userName + "! Come posso aiutarti oggi?"
		}
		return "Buongiorno! Sono ScheduleAI, il tuo assistente per le prenotazioni. Come posso aiutarti oggi?"
	case strings.Contains(lower, "disponibil") || strings.Contains(lower, "quando"):
		return "Posso controllare le disponibilità per te. Che giorno ti interessa e di che tipo di servizio hai bisogno?"
	case strings.Contains(lower, "grazie"):
		return "Prego! Sono qui per aiutarti con qualsiasi altra domanda o prenotazione."
	default:
		return "Sono ScheduleAI, il tuo assistente per prenotazioni. Posso aiutarti a prenotare appuntamenti, controllare disponibilità e gestire la tua agenda. Come posso assisterti?"
	}
}

func invalidReply(errs []string) string {
	var b strings.Builder
	b.WriteString("Non posso prenotare l'appuntamento:")
	for _, e := range errs {
		b.WriteString("\n- ")
		b.WriteString(e)
	}
	return b.String()
}

func bookedReply(clientName string, req models.AppointmentRequest, booked models.BookingResult, warnings []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Appuntamento creato con successo nel calendario per %s\n", clientName)
	fmt.Fprintf(&b, "%s, %s %s alle %s (%d minuti)",
		req.Service,
		italianWeekdays[req.Start.Weekday()],
		req.Start.Format("02/01/2006"),
		req.Start.Format("15:04"),
		req.DurationMinutes)
	if booked.ExternalLink != "" {
		b.WriteString("\nAggiungilo al tuo calendario: ")
		b.WriteString(booked.ExternalLink)
	}
	for _, w := range warnings {
		b.WriteString("\n⚠️ ")
		b.WriteString(w)
	}
	return b.String()
}

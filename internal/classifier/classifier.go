package classifier

import (
	"context"
	"strings"

	"github.com/xaenox/schedule-bot/internal/models"
)

const (
	FallbackService  = "generale"
	FallbackDuration = 30
)

type Classifier interface {
	Classify(ctx context.Context, content string) (service string, durationMinutes int)
}

type servicePattern struct {
	phrase   string
	service  string
	duration int
}

// Most specific phrases first: "consulenza fiscale" must win over "consulenza".
var servicePatterns = []servicePattern{
	{"consulenza fiscale", "consulenza_fiscale", 90},
	{"consulenza tributaria", "consulenza_fiscale", 90},
	{"consulenza tax", "consulenza_fiscale", 90},
	{"tax consultation", "consulenza_fiscale", 90},
	{"consulenza legale", "consulenza_legale", 90},
	{"legal consultation", "consulenza_legale", 90},
	{"consulenza", "consulenza", 60},
	{"consultazione", "consulenza", 60},
	{"consultation", "consulenza", 60},
	{"riunione", "riunione", 60},
	{"meeting", "riunione", 60},
	{"appuntamento breve", "appunto", 30},
	{"appunto", "appunto", 30},
	{"chiarimento", "appunto", 30},
	{"incontro conoscitivo", "incontro", 45},
	{"incontro", "incontro", 45},
	{"sopralluogo", "visita", 60},
	{"visita", "visita", 60},
	{"seduta", "seduta", 50},
	{"sessione", "seduta", 50},
	{"colloquio", "colloquio", 30},
	{"intervista", "intervista", 45},
	{"interview", "intervista", 45},
}

type durationPattern struct {
	phrase  string
	minutes int
}

// Compound phrases first: "un'ora e mezza" contains "un'ora".
var durationPatterns = []durationPattern{
	{"un'ora e mezza", 90},
	{"un'ora e mezzo", 90},
	{"90 minuti", 90},
	{"120 minuti", 120},
	{"due ore", 120},
	{"60 minuti", 60},
	{"45 minuti", 45},
	{"un'ora", 60},
	{"30 minuti", 30},
	{"mezz'ora", 30},
	{"mezzora", 30},
	{"un quarto d'ora", 15},
	{"15 minuti", 15},
	{"10 minuti", 10},
	{"half an hour", 30},
	{"an hour and a half", 90},
	{"one hour", 60},
	{"two hours", 120},
}

var serviceNames = map[string]string{
	"consulenza_fiscale": "Consulenza Fiscale",
	"consulenza_legale":  "Consulenza Legale",
	"consulenza":         "Consulenza",
	"riunione":           "Riunione",
	"appunto":            "Appunto",
	"incontro":           "Incontro",
	"visita":             "Visita",
	"seduta":             "Seduta",
	"colloquio":          "Colloquio",
	"intervista":         "Intervista",
}

// SimpleClassifier maps free text to a service through the keyword tables.
// The tables are read-only so a single instance can be shared.
type SimpleClassifier struct{}

func NewSimpleClassifier() *SimpleClassifier {
	return &SimpleClassifier{}
}

func (c *SimpleClassifier) Classify(_ context.Context, content string) (string, int) {
	lower := normalize(content)

	service, duration := FallbackService, FallbackDuration
	for _, p := range servicePatterns {
		if strings.Contains(lower, p.phrase) {
			service, duration = p.service, p.duration
			break
		}
	}

	if minutes, ok := ExplicitDuration(lower); ok {
		duration = minutes
	}
	return service, duration
}

// ExplicitDuration returns the minute count of a duration phrase found in content.
func ExplicitDuration(content string) (int, bool) {
	lower := normalize(content)
	for _, p := range durationPatterns {
		if strings.Contains(lower, p.phrase) {
			return p.minutes, true
		}
	}
	return 0, false
}

// DefaultDuration returns the default duration of a canonical service id.
func DefaultDuration(service string) (int, bool) {
	for _, p := range servicePatterns {
		if p.service == service {
			return p.duration, true
		}
	}
	return 0, false
}

// Services lists the catalogue in table order, one entry per canonical id.
func Services() []models.Service {
	seen := make(map[string]struct{})
	out := make([]models.Service, 0, len(serviceNames))
	for _, p := range servicePatterns {
		if _, ok := seen[p.service]; ok {
			continue
		}
		seen[p.service] = struct{}{}
		out = append(out, models.Service{
			ID:              p.service,
			Name:            serviceNames[p.service],
			DurationMinutes: p.duration,
		})
	}
	return out
}

func normalize(content string) string {
	return strings.ReplaceAll(strings.ToLower(content), "’", "'")
}

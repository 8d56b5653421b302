package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimpleClassifierServices(t *testing.T) {
	c := NewSimpleClassifier()
	cases := []struct {
		text     string
		service  string
		duration int
	}{
		{"Vorrei una CONSULENZA FISCALE domani", "consulenza_fiscale", 90},
		{"mi serve una consulenza per il contratto", "consulenza", 60},
		{"consulenza legale urgente", "consulenza_legale", 90},
		{"possiamo fissare una riunione?", "riunione", 60},
		{"un incontro conoscitivo giovedì", "incontro", 45},
		{"sopralluogo in cantiere", "visita", 60},
		{"prenoto una seduta", "seduta", 50},
		{"colloquio informativo", "colloquio", 30},
		{"intervista di lavoro", "intervista", 45},
		{"ciao, vorrei prenotare", "generale", 30},
	}

	for _, tc := range cases {
		service, duration := c.Classify(context.Background(), tc.text)
		assert.Equal(t, tc.service, service, tc.text)
		assert.Equal(t, tc.duration, duration, tc.text)
	}
}

func TestSimpleClassifierDurationOverride(t *testing.T) {
	c := NewSimpleClassifier()
	cases := []struct {
		text     string
		duration int
	}{
		{"consulenza fiscale di mezz'ora", 30},
		{"riunione di un'ora e mezza", 90},
		{"riunione di un'ora", 60},
		{"colloquio di due ore", 120},
		{"seduta di 90 minuti", 90},
		{"appunto veloce, un quarto d'ora", 15},
		{"consulenza di un’ora", 60},
		{"vorrei prenotare per 45 minuti", 45},
	}

	for _, tc := range cases {
		_, duration := c.Classify(context.Background(), tc.text)
		assert.Equal(t, tc.duration, duration, tc.text)
	}
}

func TestExplicitDuration(t *testing.T) {
	minutes, ok := ExplicitDuration("Una seduta di Due Ore")
	assert.True(t, ok)
	assert.Equal(t, 120, minutes)

	_, ok = ExplicitDuration("domani alle 10")
	assert.False(t, ok)
}

func TestServicesCatalogue(t *testing.T) {
	services := Services()

	assert.Len(t, services, 10)
	assert.Equal(t, "consulenza_fiscale", services[0].ID)
	assert.Equal(t, "Consulenza Fiscale", services[0].Name)
	assert.Equal(t, 90, services[0].DurationMinutes)

	ids := make(map[string]bool)
	for _, s := range services {
		assert.False(t, ids[s.ID], "duplicate id %s", s.ID)
		ids[s.ID] = true
		assert.NotEmpty(t, s.Name, s.ID)
	}
}

func TestDefaultDuration(t *testing.T) {
	d, ok := DefaultDuration("seduta")
	assert.True(t, ok)
	assert.Equal(t, 50, d)

	_, ok = DefaultDuration("yoga")
	assert.False(t, ok)
}

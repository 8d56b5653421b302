// Package parser turns a free-form message into an AppointmentRequest by
// combining the temporal resolver with a service classifier.
package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/xaenox/schedule-bot/internal/classifier"
	"github.com/xaenox/schedule-bot/internal/models"
	"github.com/xaenox/schedule-bot/internal/temporal"
)

type Parser struct {
	resolver   *temporal.Resolver
	classifier classifier.Classifier
}

func New(resolver *temporal.Resolver, clf classifier.Classifier) *Parser {
	return &Parser{resolver: resolver, classifier: clf}
}

// Parse resolves text against reference, an ISO instant or "" for now.
func (p *Parser) Parse(ctx context.Context, text, reference string) (models.AppointmentRequest, error) {
	res, err := p.resolver.Resolve(text, reference)
	if err != nil {
		return models.AppointmentRequest{}, fmt.Errorf("resolve date: %w", err)
	}
	return p.build(ctx, text, res), nil
}

// ParseAt is Parse with an already known reference instant.
func (p *Parser) ParseAt(ctx context.Context, text string, ref time.Time) (models.AppointmentRequest, error) {
	res, err := p.resolver.ResolveAt(text, ref)
	if err != nil {
		return models.AppointmentRequest{}, fmt.Errorf("resolve date: %w", err)
	}
	return p.build(ctx, text, res), nil
}

func (p *Parser) build(ctx context.Context, text string, res temporal.Result) models.AppointmentRequest {
	service, duration := p.classifier.Classify(ctx, text)
	return models.AppointmentRequest{
		RawText:         text,
		Date:            res.Date,
		Time:            res.Time,
		Start:           res.Start,
		Timezone:        res.Timezone,
		Service:         service,
		DurationMinutes: duration,
		Confidence:      res.Confidence,
		DateMatched:     res.DateMatched,
	}
}

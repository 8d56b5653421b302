package conversation

import (
	"sort"
	"strings"

	"github.com/xaenox/schedule-bot/internal/models"
)

const searchWindow = 2

// Relevance scores text against query: 1.0 when the whole query appears in
// text, otherwise the share of query words found in it.
func Relevance(text, query string) float64 {
	text = strings.ToLower(text)
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return 0
	}
	if strings.Contains(text, query) {
		return 1.0
	}

	words := strings.Fields(query)
	matched := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			matched++
		}
	}
	return float64(matched) / float64(len(words))
}

// Search keeps the messages containing the whole query, ignoring case, and
// returns the best limit results with two messages of context on each side.
// Equal scores keep conversation order.
func Search(messages []models.Message, query string, limit int) []models.SearchResult {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	results := []models.SearchResult{}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return results
	}
	for i, msg := range messages {
		if !strings.Contains(strings.ToLower(msg.Content), q) {
			continue
		}
		score := Relevance(msg.Content, query)
		start := max(0, i-searchWindow)
		end := min(len(messages), i+searchWindow+1)
		window := make([]models.Message, end-start)
		copy(window, messages[start:end])

		results = append(results, models.SearchResult{
			Message:        msg,
			Context:        window,
			RelevanceScore: score,
			Position:       i,
			TotalMessages:  len(messages),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

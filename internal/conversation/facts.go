package conversation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xaenox/schedule-bot/internal/models"
)

// Metadata keys read back from stored messages.
const (
	MetaServiceType = "service_type"
)

const emailTrim = ".,!?;:()<>\"'"

// Phrases after which the next word is taken as the user's name.
var namePhrases = [][]string{
	{"mi", "chiamo"},
	{"i'm", "called"},
	{"my", "name", "is"},
}

// Phrases whose next word is a name only when it is capitalised.
var weakNamePhrases = [][]string{
	{"sono"},
	{"i", "am"},
}

// ExtractEmail returns the first whitespace separated token that contains
// both "@" and ".", trimmed of surrounding punctuation.
func ExtractEmail(text string) (string, bool) {
	if !strings.Contains(text, "@") {
		return "", false
	}
	for _, word := range strings.Fields(text) {
		if strings.Contains(word, "@") && strings.Contains(word, ".") {
			if email := strings.Trim(word, emailTrim); email != "" {
				return email, true
			}
		}
	}
	return "", false
}

// ExtractName looks for a self introduction in text.
func ExtractName(text string) (string, bool) {
	words := strings.Fields(strings.ReplaceAll(text, "’", "'"))

	for i := range words {
		for _, phrase := range namePhrases {
			if next, ok := followingWord(words, i, phrase); ok {
				return capitalize(next), true
			}
		}
		for _, phrase := range weakNamePhrases {
			if next, ok := followingWord(words, i, phrase); ok && isTitle(next) {
				return next, true
			}
		}
	}
	return "", false
}

// followingWord reports the word after phrase when phrase starts at words[i].
func followingWord(words []string, i int, phrase []string) (string, bool) {
	if i+len(phrase) >= len(words) {
		return "", false
	}
	for j, p := range phrase {
		if strings.ToLower(strings.Trim(words[i+j], ",.!?;:")) != p {
			return "", false
		}
	}
	next := strings.Trim(words[i+len(phrase)], ",.!?;:\"'()")
	r, _ := utf8.DecodeRuneInString(next)
	if next == "" || !unicode.IsLetter(r) {
		return "", false
	}
	return next, true
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
}

func isTitle(word string) bool {
	r, size := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(r) && strings.ToLower(word[size:]) == word[size:]
}

// ExtractFacts derives the structured facts of a conversation from its
// messages alone. The same messages always yield the same facts.
func ExtractFacts(messages []models.Message) models.ExtractedFacts {
	facts := models.ExtractedFacts{ServiceTypes: []string{}}
	seen := make(map[string]bool)

	for _, msg := range messages {
		if facts.UserEmail == "" {
			if email, ok := ExtractEmail(msg.Content); ok {
				facts.UserEmail = email
			}
		}

		if facts.UserName == "" && msg.Role == models.RoleUser {
			if name, ok := ExtractName(msg.Content); ok {
				facts.UserName = name
			}
		}

		if service := msg.Metadata[MetaServiceType]; service != "" && !seen[service] {
			seen[service] = true
			facts.ServiceTypes = append(facts.ServiceTypes, service)
		}

		if msg.MessageType == models.TypeAppointmentCreated {
			facts.AppointmentCount++
			if len(msg.Metadata) > 0 {
				last := make(map[string]string, len(msg.Metadata))
				for k, v := range msg.Metadata {
					last[k] = v
				}
				facts.LastAppointment = last
			}
		}
	}

	return facts
}

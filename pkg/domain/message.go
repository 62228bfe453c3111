package domain

import (
	"regexp"
	"time"
)

var placeholderPattern = regexp.MustCompile(`\{[a-z]+\}`)

// Message is a catalogue entry keyed by code and language. The zero value is
// inactive; use NewMessage for an active entry.
type Message struct {
	ID          uint      `json:"id"`
	Code        string    `json:"code"`
	Language    string    `json:"language"`
	Text        string    `json:"text"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewMessage returns an active catalogue entry.
func NewMessage(code, language, text string) Message {
	return Message{Code: code, Language: language, Text: text, IsActive: true}
}

// HasParameter reports whether the text carries a {placeholder}.
func (m Message) HasParameter() bool {
	return placeholderPattern.MatchString(m.Text)
}

// Format substitutes placeholders found in params and leaves the rest intact.
func (m Message) Format(params map[string]string) string {
	if len(params) == 0 {
		return m.Text
	}
	return placeholderPattern.ReplaceAllStringFunc(m.Text, func(match string) string {
		if v, ok := params[match[1:len(match)-1]]; ok {
			return v
		}
		return match
	})
}

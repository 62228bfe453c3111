package app

import (
	"strings"

	"docintake/pkg/domain"
)

// ListMessages returns the active catalogue entries of a language, most
// recently updated first. An empty language falls back to the configured one.
func (a *App) ListMessages(language string) ([]domain.Message, error) {
	language = strings.TrimSpace(language)
	if language == "" {
		language = a.language
	}
	return a.store.ListActiveMessages(language)
}

// GetMessage returns one catalogue entry and whether it exists.
func (a *App) GetMessage(code, language string) (domain.Message, bool, error) {
	language = strings.TrimSpace(language)
	if language == "" {
		language = a.language
	}
	return a.store.GetMessage(strings.TrimSpace(code), language)
}

// Package localization renders the announcement texts the service writes
// into session chats and the operator channel.
// Translations are JSON files embedded at build time, one per language code.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
)

//go:embed locales/*.json
var embedded embed.FS

// DefaultLanguage is used when a key is missing in the requested language.
const DefaultLanguage = "en"

// Message keys.
const (
	KeyParticipantJoined  = "presence.joined"
	KeyParticipantLeft    = "presence.left"
	KeySessionStarted     = "session.started"
	KeySessionEnded       = "session.ended"
	KeyRecordingStarted   = "recording.started"
	KeyRecordingStopped   = "recording.stopped"
	KeyRecordingAvailable = "recording.available"
	KeyOpsSessionStatus   = "ops.session_status"
	KeyOpsRecordingFailed = "ops.recording_failed"
)

// Localizer manages the translations for the application.
type Localizer struct {
	translations map[string]map[string]string
	lang         string
	mu           sync.RWMutex
}

// NewLocalizer loads the embedded translations and selects lang for Format.
func NewLocalizer(lang string) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
		lang:         lang,
	}

	files, err := embedded.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		data, err := embedded.ReadFile(path.Join("locales", file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[strings.TrimSuffix(file.Name(), ".json")] = translations
	}

	if _, ok := l.translations[lang]; !ok {
		l.lang = DefaultLanguage
	}
	return l, nil
}

// GetString returns the localized string for a given key and language.
// If the language or the key is not found, it returns the key itself as a fallback.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value
		}
	}

	if lang != DefaultLanguage {
		if enTranslations, ok := l.translations[DefaultLanguage]; ok {
			if value, ok := enTranslations[key]; ok {
				return value
			}
		}
	}

	return key
}

// Format renders key in the configured language with fmt verbs filled from args.
func (l *Localizer) Format(key string, args ...any) string {
	tmpl := l.GetString(l.lang, key)
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// Language is the language Format renders in.
func (l *Localizer) Language() string {
	return l.lang
}

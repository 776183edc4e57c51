package i18n

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"opboard/internal/ports/output"
)

//go:embed active.*.toml
var localeFS embed.FS

// Locales lists the embedded message files. English comes first and is
// the bundle's last resort.
var Locales = []string{"en", "fr"}

var _ output.T = (*Translator)(nil)

// Translator serves the embedded bot messages. Lookups try the requested
// locale, then the configured one, then English.
type Translator struct {
	bundle   *i18n.Bundle
	fallback string
	logger   *slog.Logger

	mu         sync.Mutex
	localizers map[string]*i18n.Localizer
}

// NewTranslator loads every embedded message file. An unparsable
// defaultLocale is logged and replaced by English; a broken message file
// is an error.
func NewTranslator(defaultLocale string, logger *slog.Logger) (*Translator, error) {
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		logger.Warn("unknown locale, using English", "locale", defaultLocale)
		tag = language.English
	}
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	for _, locale := range Locales {
		file := "active." + locale + ".toml"
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, fmt.Errorf("i18n: load %s: %w", file, err)
		}
	}
	return &Translator{
		bundle:     bundle,
		fallback:   tag.String(),
		logger:     logger,
		localizers: make(map[string]*i18n.Localizer),
	}, nil
}

func (t *Translator) localizer(locale string) *i18n.Localizer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.localizers[locale]; ok {
		return l
	}
	l := i18n.NewLocalizer(t.bundle, locale, t.fallback)
	t.localizers[locale] = l
	return l
}

// T renders key with data. A key missing everywhere comes back as is, so
// the user still sees something and the log says what is missing.
func (t *Translator) T(locale, key string, data map[string]any) string {
	if key == "" {
		return ""
	}
	if locale == "" {
		locale = t.fallback
	}
	msg, err := t.localizer(locale).Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err == nil {
		return msg
	}
	var notFound *i18n.MessageNotFoundErr
	if errors.As(err, &notFound) && msg != "" {
		return msg
	}
	t.logger.Warn("localize failed", "key", key, "locale", locale, "error", err)
	return key
}

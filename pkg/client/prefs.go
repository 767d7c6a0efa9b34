package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gebeya-market/gebeya-backend/pkg/localstore"
)

const (
	LanguageEnglish = "en"
	LanguageAmharic = "am"

	langKey  = "lang"
	tokenKey = "auth_token"
)

// Prefs stores the device language and the cached bearer token next to the
// carts.
type Prefs struct {
	storage localstore.Storage
}

func NewPrefs(storage localstore.Storage) *Prefs {
	return &Prefs{storage: storage}
}

// Language returns the saved language, English when unset or unreadable.
func (p *Prefs) Language() string {
	raw, err := p.storage.Get(langKey)
	if err != nil {
		return LanguageEnglish
	}
	if lang := strings.TrimSpace(string(raw)); lang == LanguageAmharic {
		return lang
	}
	return LanguageEnglish
}

func (p *Prefs) SetLanguage(lang string) error {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang != LanguageEnglish && lang != LanguageAmharic {
		return fmt.Errorf("unsupported language %q (want en or am)", lang)
	}
	return p.storage.Set(langKey, []byte(lang))
}

// Token returns the cached bearer token, or "" when logged out.
func (p *Prefs) Token() (string, error) {
	raw, err := p.storage.Get(tokenKey)
	if errors.Is(err, localstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (p *Prefs) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return p.storage.Delete(tokenKey)
	}
	return p.storage.Set(tokenKey, []byte(token))
}

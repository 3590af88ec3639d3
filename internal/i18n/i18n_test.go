package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		accept   string
		expected language.Tag
	}{
		{"en-US,en;q=0.9", language.English},
		{"de-DE,de;q=0.9", language.German},
		{"fr-FR", language.English},
		{"", language.English},
		{"de_DE.UTF-8", language.German},
		{"de_AT", language.German},
		{"C.UTF-8", language.English},
	}

	for _, tt := range tests {
		base, _ := MatchLanguage(tt.accept).Base()
		exp, _ := tt.expected.Base()
		assert.Equal(t, exp, base, "Accept: %s", tt.accept)
	}
}

func TestMiddleware_LocalizesToasts(t *testing.T) {
	var got string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetPrinter(r.Context()).Sprintf(MsgRuleAdded)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Language", "de")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "Regel hinzugefügt", got)
}

func TestGetPrinter_Default(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, MsgRuleDeleted, GetPrinter(req.Context()).Sprintf(MsgRuleDeleted))
}

func TestNewCLIPrinter(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LANG", "de_DE.UTF-8")
	assert.Equal(t, "Falsches Passwort", NewCLIPrinter().Sprintf(MsgWrongPass))

	t.Setenv("LC_ALL", "POSIX")
	assert.Equal(t, MsgWrongPass, NewCLIPrinter().Sprintf(MsgWrongPass))
}

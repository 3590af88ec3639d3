// Package i18n localizes the console's user-facing strings (toasts, CLI
// output) with golang.org/x/text.
package i18n

import (
	"context"
	"net/http"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLang is the fallback language
var DefaultLang = language.English

var matcher = language.NewMatcher([]language.Tag{
	language.English,
	language.German,
})

// Message keys shown to operators. English text doubles as the key.
const (
	MsgRuleAdded    = "Rule added"
	MsgRuleDeleted  = "Rule deleted"
	MsgGenericError = "Something went wrong, please retry"
	MsgWrongPass    = "Wrong password"
	MsgNotReady     = "Rules are still loading"
	MsgLoadFailed   = "Loading rules failed, press r to reload"
)

func init() {
	for key, de := range map[string]string{
		MsgRuleAdded:    "Regel hinzugefügt",
		MsgRuleDeleted:  "Regel gelöscht",
		MsgGenericError: "Etwas ist schiefgelaufen, bitte erneut versuchen",
		MsgWrongPass:    "Falsches Passwort",
		MsgNotReady:     "Regeln werden noch geladen",
		MsgLoadFailed:   "Laden der Regeln fehlgeschlagen, r zum Neuladen",
	} {
		_ = message.SetString(language.German, key, de)
	}
}

type printerKey struct{}

// MatchLanguage picks the supported language for an Accept-Language header
// or a POSIX locale such as "de_DE.UTF-8".
func MatchLanguage(s string) language.Tag {
	if !strings.ContainsAny(s, ",;=") {
		s, _, _ = strings.Cut(s, ".")
		s = strings.ReplaceAll(s, "_", "-")
	}
	tags, _, _ := language.ParseAcceptLanguage(s)
	tag, _, _ := matcher.Match(tags...)
	return tag
}

// NewPrinter returns a message printer for the given language
func NewPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// GetPrinter returns the printer Middleware stored in ctx, or one for
// DefaultLang.
func GetPrinter(ctx context.Context) *message.Printer {
	if p, ok := ctx.Value(printerKey{}).(*message.Printer); ok {
		return p
	}
	return message.NewPrinter(DefaultLang)
}

// Middleware injects a printer for the request's Accept-Language.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := NewPrinter(MatchLanguage(r.Header.Get("Accept-Language")))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), printerKey{}, p)))
	})
}

// NewCLIPrinter returns a printer for the locale in LC_ALL or LANG.
func NewCLIPrinter() *message.Printer {
	lang := os.Getenv("LC_ALL")
	if lang == "" {
		lang = os.Getenv("LANG")
	}
	return message.NewPrinter(MatchLanguage(lang))
}

package middleware

import (
	"net/http"

	"golang.org/x/text/language"

	"github.com/iliyamo/inventory-admin/internal/auth"
)

var (
	supported = []language.Tag{language.English, language.German}
	matcher   = language.NewMatcher(supported)
)

// messages holds the user-facing guard messages per supported language,
// indexed like supported.
var messages = []map[auth.Kind]string{
	{
		auth.KindMissingToken:     "authentication required",
		auth.KindMalformedToken:   "invalid session, please sign in again",
		auth.KindInvalidSignature: "invalid session, please sign in again",
		auth.KindExpiredToken:     "your session has expired, please sign in again",
		auth.KindInsufficientRole: "you do not have permission to perform this action",
	},
	{
		auth.KindMissingToken:     "Anmeldung erforderlich",
		auth.KindMalformedToken:   "Ungültige Sitzung, bitte erneut anmelden",
		auth.KindInvalidSignature: "Ungültige Sitzung, bitte erneut anmelden",
		auth.KindExpiredToken:     "Ihre Sitzung ist abgelaufen, bitte erneut anmelden",
		auth.KindInsufficientRole: "Sie haben keine Berechtigung für diese Aktion",
	},
}

// Message returns the localized message for kind, picked from the
// request's Accept-Language.  English is the fallback.
func Message(r *http.Request, kind auth.Kind) string {
	idx := 0
	if r != nil {
		if tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil && len(tags) > 0 {
			_, idx, _ = matcher.Match(tags...)
		}
	}
	if msg, ok := messages[idx][kind]; ok {
		return msg
	}
	return messages[idx][auth.KindMissingToken]
}

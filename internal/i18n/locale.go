package i18n

import (
	"net/http"
	"strconv"
	"strings"
)

const DefaultLocale = "en"

var supportedLocales = map[string]struct{}{
	"en": {},
	"de": {},
}

func LocaleFromRequest(r *http.Request) string {
	if r == nil {
		return DefaultLocale
	}
	return NormalizeLocale(r.Header.Get("Accept-Language"))
}

// NormalizeLocale picks the supported language with the highest q value from
// an Accept-Language header. Ties keep header order.
func NormalizeLocale(header string) string {
	best, bestQ := DefaultLocale, -1.0
	for _, part := range strings.Split(header, ",") {
		lang, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		lang = strings.ToLower(strings.TrimSpace(lang))
		if base, _, found := strings.Cut(lang, "-"); found {
			lang = base
		}
		if _, ok := supportedLocales[lang]; !ok {
			continue
		}

		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				q = parsed
			}
		}
		if q > 0 && q > bestQ {
			best, bestQ = lang, q
		}
	}
	return best
}

package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

// SupportedLocales are the UI locales the product ships translations for.
var SupportedLocales = []string{"en", "de", "es", "fr", "it", "ja", "ko", "pt", "zh-CN", "zh-TW"}

const DefaultLocale = "zh-TW"

var countryLocales = map[string]string{
	"US": "en", "GB": "en", "AU": "en", "CA": "en", "NZ": "en", "IE": "en", "SG": "en",
	"DE": "de", "AT": "de", "CH": "de",
	"ES": "es", "MX": "es", "AR": "es", "CO": "es", "CL": "es", "PE": "es",
	"FR": "fr", "BE": "fr", "LU": "fr",
	"IT": "it",
	"JP": "ja",
	"KR": "ko",
	"PT": "pt", "BR": "pt",
	"CN": "zh-CN",
	"TW": "zh-TW", "HK": "zh-TW", "MO": "zh-TW",
}

type localeContextKey struct{}
type countryContextKey struct{}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// Localizer picks one of SupportedLocales for a request.
type Localizer struct {
	matcher  language.Matcher
	fallback string
	lookup   CountryLookup
}

// NewLocalizer builds a Localizer. An unsupported fallback is replaced by
// DefaultLocale; lookup may be nil.
func NewLocalizer(fallback string, lookup CountryLookup) *Localizer {
	tags := make([]language.Tag, len(SupportedLocales))
	for i, l := range SupportedLocales {
		tags[i] = language.MustParse(l)
	}
	l := &Localizer{matcher: language.NewMatcher(tags), lookup: lookup, fallback: DefaultLocale}
	if m := l.match(fallback); m != "" {
		l.fallback = m
	}
	return l
}

// Detect applies X-Locale, then Accept-Language, then the client country,
// then the fallback. It also returns the resolved country, if any.
func (l *Localizer) Detect(r *http.Request) (locale, country string) {
	country = ResolveCountry(r, l.lookup)
	if m := l.match(r.Header.Get("X-Locale")); m != "" {
		return m, country
	}
	if m := l.matchAccept(r.Header.Get("Accept-Language")); m != "" {
		return m, country
	}
	if m, ok := countryLocales[country]; ok {
		return m, country
	}
	return l.fallback, country
}

func (l *Localizer) match(raw string) string {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "_", "-"))
	if raw == "" {
		return ""
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return ""
	}
	_, idx, conf := l.matcher.Match(tag)
	if conf == language.No {
		return ""
	}
	return SupportedLocales[idx]
}

func (l *Localizer) matchAccept(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, idx, conf := l.matcher.Match(tags...)
	if conf == language.No {
		return ""
	}
	return SupportedLocales[idx]
}

// I18N stores the detected locale and country in the request context and
// echoes the locale as Content-Language.
func I18N(l *Localizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale, country := l.Detect(r)
			ctx := context.WithValue(r.Context(), localeContextKey{}, locale)
			if country != "" {
				ctx = context.WithValue(ctx, countryContextKey{}, country)
			}
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(localeContextKey{}).(string); ok {
		return v
	}
	return DefaultLocale
}

func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(countryContextKey{}).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry prefers CDN country headers and falls back to lookup.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, key := range []string{"CF-IPCountry", "X-Country-Code", "X-Appengine-Country"} {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" && val != "XX" {
			return strings.ToUpper(val)
		}
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

// ClientIP returns the first valid X-Forwarded-For entry or the remote host.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package view

import (
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	upper = cases.Upper(language.Und)
	title = cases.Title(language.English)
)

// Funcs returns the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"initials":   Initials,
		"roleLabel":  RoleLabel,
		"formatDate": FormatDate,
		"dob":        FormatDOB,
		"orNA":       OrNA,
		"add":        func(a, b int) int { return a + b },
		"fieldError": FieldError,
	}
}

// Initials returns up to two upper-cased leading letters of name, or "?".
func Initials(name string) string {
	var b strings.Builder
	n := 0
	for _, part := range strings.Fields(name) {
		if n == 2 {
			break
		}
		_, size := utf8.DecodeRuneInString(part)
		b.WriteString(upper.String(part[:size]))
		n++
	}
	if b.Len() == 0 {
		return "?"
	}
	return b.String()
}

// RoleLabel renders a role tag such as "super_admin" as "Super Admin".
func RoleLabel(role string) string {
	role = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(role))
	if role == "" {
		return "N/A"
	}
	return title.String(strings.ToLower(role))
}

// FormatDate renders t as "02 Jan 2006 15:04"; zero times render empty.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006 15:04")
}

// FormatDOB renders an ISO date or timestamp as "Jan 2, 2006". Values that do
// not parse fall back to OrNA.
func FormatDOB(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return OrNA(raw)
}

// OrNA substitutes "N/A" for blank strings.
func OrNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// FieldError looks field up in a map of form errors. Anything else yields "".
func FieldError(errs any, field string) string {
	if m, ok := errs.(map[string]string); ok {
		return m[field]
	}
	return ""
}

// Package i18n provides the localized text record used by patient-facing
// fields. The shape is always explicit {fr, en}; resolution order is
// requested language, then French, then empty.
package i18n

// Lang identifies a supported display language.
type Lang string

const (
	LangFR Lang = "fr"
	LangEN Lang = "en"
)

// ParseLang maps a raw language code to a supported Lang, defaulting to French.
func ParseLang(s string) Lang {
	if Lang(s) == LangEN {
		return LangEN
	}
	return LangFR
}

// LocalizedText holds the French and English renderings of a text field.
type LocalizedText struct {
	FR string `json:"fr,omitempty"`
	EN string `json:"en,omitempty"`
}

// Plain builds a LocalizedText carrying the same value in both languages.
func Plain(s string) LocalizedText {
	return LocalizedText{FR: s, EN: s}
}

// Resolve returns the text for lang, falling back to French, then "".
func (t LocalizedText) Resolve(lang Lang) string {
	if lang == LangEN && t.EN != "" {
		return t.EN
	}
	if t.FR != "" {
		return t.FR
	}
	return t.EN
}

// IsZero reports whether no rendering is set.
func (t LocalizedText) IsZero() bool {
	return t.FR == "" && t.EN == ""
}

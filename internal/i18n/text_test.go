package i18n

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		text LocalizedText
		lang Lang
		want string
	}{
		{"english when set", LocalizedText{FR: "Bonjour", EN: "Hello"}, LangEN, "Hello"},
		{"french when set", LocalizedText{FR: "Bonjour", EN: "Hello"}, LangFR, "Bonjour"},
		{"english falls back to french", LocalizedText{FR: "Bonjour"}, LangEN, "Bonjour"},
		{"french falls back to english", LocalizedText{EN: "Hello"}, LangFR, "Hello"},
		{"empty", LocalizedText{}, LangFR, ""},
	}
	for _, tt := range tests {
		if got := tt.text.Resolve(tt.lang); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseLang(t *testing.T) {
	if ParseLang("en") != LangEN {
		t.Fatalf("en not recognized")
	}
	for _, raw := range []string{"fr", "", "de", "EN"} {
		if ParseLang(raw) != LangFR {
			t.Fatalf("%q did not default to French", raw)
		}
	}
}

func TestPlain(t *testing.T) {
	p := Plain("x")
	if p.FR != "x" || p.EN != "x" || p.IsZero() {
		t.Fatalf("unexpected: %+v", p)
	}
}

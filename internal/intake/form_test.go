package intake

import (
	"errors"
	"testing"
)

func TestParseFormMapsKnownFields(t *testing.T) {
	t.Parallel()

	f, err := ParseForm(map[string][]string{
		"visitorId":       {"v1"},
		"nombreCandidato": {"  Ana <b>López</b> "},
		"puesto":          {"Dev"},
		"emailContacto":   {"rh@empresa.mx"},
		"monto":           {"50000"},
		"utmSource":       {"google"},
		"comentarios":     {"hola<script>alert(1)</script> mundo"},
	})
	if err != nil {
		t.Fatalf("ParseForm error: %v", err)
	}
	if f.VisitorID != "v1" || f.Position != "Dev" {
		t.Fatalf("unexpected form: %+v", f)
	}
	if f.Candidate != "Ana López" {
		t.Fatalf("expected markup stripped, got %q", f.Candidate)
	}
	if f.Comments != "hola mundo" {
		t.Fatalf("expected script removed, got %q", f.Comments)
	}
	if f.Amount != 50000 {
		t.Fatalf("expected amount 50000, got %d", f.Amount)
	}
	if f.Attribution.Source != "google" {
		t.Fatalf("expected attribution, got %+v", f.Attribution)
	}
}

func TestParseFormRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	cases := []map[string][]string{
		{"visitorId": {"v1"}, "campoRaro": {"x"}},
		{"visitorId": {"v1"}, "monto": {"abc"}},
		{"visitorId": {"v1"}, "monto": {"-5"}},
		{"visitorId": {"v1"}, "emailContacto": {"no-es-email"}},
	}
	for i, values := range cases {
		_, err := ParseForm(values)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("case %d expected ValidationError, got %v", i, err)
		}
	}
}

func TestCleanTextTruncates(t *testing.T) {
	t.Parallel()

	got := cleanText("ñañañaña", 3)
	if got != "ñañ" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}

func TestDedupKeyNormalizes(t *testing.T) {
	t.Parallel()

	if DedupKey(" Ana  María ", "DEV") != DedupKey("ana maría", "dev") {
		t.Fatalf("expected normalized keys to match")
	}
	if DedupKey("Ana", "Dev") == DedupKey("Ana", "QA") {
		t.Fatalf("expected different roles to differ")
	}
}

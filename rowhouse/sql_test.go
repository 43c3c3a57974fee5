package rowhouse

import (
	"strings"
	"testing"
	"time"
)

func TestSQLBuilderBindsInOrder(t *testing.T) {
	t.Parallel()

	b := newSQLBuilder("SELECT * FROM t WHERE a = ? AND b = ? AND c = ?")
	b.bindArg(uint32(7))
	b.bindArg("two")
	b.bindArg(int64(-3))

	got, err := b.finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	want := "SELECT * FROM t WHERE a = 7 AND b = 'two' AND c = -3"
	if got != want {
		t.Fatalf("finish = %q, want %q", got, want)
	}
}

func TestSQLBuilderBindCountMismatch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		binds int
	}{
		{"too few", 1},
		{"too many", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := newSQLBuilder("SELECT ? + ?")
			for i := 0; i < tc.binds; i++ {
				b.bindArg(i)
			}
			if _, err := b.finish(); err == nil {
				t.Fatalf("finish succeeded with %d binds for 2 placeholders", tc.binds)
			}
		})
	}

	b := newSQLBuilder("SELECT ? + ?")
	b.bindArg(1)
	b.bindArg(2)
	if _, err := b.finish(); err != nil {
		t.Fatalf("exact bind count failed: %v", err)
	}
}

func TestSQLBuilderFieldsExpansion(t *testing.T) {
	t.Parallel()

	b := newSQLBuilder("SELECT ?fields FROM events WHERE id = ?")
	b.bindFields([]string{"id", "name", "code"})
	b.bindArg(uint64(5))
	b.appendText(" FORMAT RowBinary")

	got, err := b.finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	want := "SELECT id,name,code FROM events WHERE id = 5 FORMAT RowBinary"
	if got != want {
		t.Fatalf("finish = %q, want %q", got, want)
	}
}

func TestSQLBuilderFieldsWithoutManifest(t *testing.T) {
	t.Parallel()

	b := newSQLBuilder("SELECT ?fields FROM events")
	if _, err := b.finish(); err == nil {
		t.Fatal("expected error for ?fields without a bound column list")
	}
}

func TestSQLBuilderDuplicateFieldsPlaceholder(t *testing.T) {
	t.Parallel()

	b := newSQLBuilder("SELECT ?fields, ?fields FROM events")
	b.bindFields([]string{"a"})
	if _, err := b.finish(); err == nil {
		t.Fatal("expected error for a second ?fields placeholder")
	}
}

func TestSQLBuilderUnsupportedBindValue(t *testing.T) {
	t.Parallel()

	b := newSQLBuilder("SELECT ?")
	b.bindArg(struct{ X int }{1})
	if _, err := b.finish(); err == nil {
		t.Fatal("expected error for unsupported bind value type")
	}
}

func TestEscapeValues(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "plain", "'plain'"},
		{"quote", "it's", `'it\'s'`},
		{"backslash", `a\b`, `'a\\b'`},
		{"newline", "a\nb", `'a\nb'`},
		{"nul", "a\x00b", `'a\0b'`},
		{"bytes", []byte{0x41, 0x27}, `'A\''`},
		{"bool true", true, "1"},
		{"bool false", false, "0"},
		{"float", 2.5, "2.5"},
		{"negative int", int16(-12), "-12"},
		{"time", at, "'2024-05-17 09:30:00'"},
		{"identifier", Identifier("events"), "`events`"},
		{"identifier escaped", Identifier("weird`name"), "`weird\\`name`"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := escapeValue(tc.value)
			if err != nil {
				t.Fatalf("escapeValue: %v", err)
			}
			if got != tc.want {
				t.Fatalf("escapeValue(%v) = %s, want %s", tc.value, got, tc.want)
			}
		})
	}
}

func TestEscapeStringNeverLeaksRawQuote(t *testing.T) {
	t.Parallel()

	hostile := `'; DROP TABLE events; --`
	got := escapeString(hostile)
	inner := strings.TrimSuffix(strings.TrimPrefix(got, "'"), "'")
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\'' && (i == 0 || inner[i-1] != '\\') {
			t.Fatalf("unescaped quote survives in %s", got)
		}
	}
}

package sqlite

import (
	"testing"
)

func TestConvertWebsearchToFTS5(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple term", input: "burgundy", expected: "burgundy"},
		{name: "multiple terms", input: "burgundy normandy", expected: "burgundy AND normandy"},
		{name: "explicit AND", input: "burgundy AND normandy", expected: "burgundy AND normandy"},
		{name: "explicit OR", input: "calais or rouen", expected: "calais OR rouen"},
		{name: "negation", input: "war -france", expected: "war NOT france"},
		{name: "leading negation", input: "-france", expected: "france"},
		{name: "phrase", input: `"hundred years"`, expected: `"hundred years"`},
		{name: "phrase with other term", input: `"hundred years" war`, expected: `"hundred years" AND war`},
		{name: "prefix search", input: "burg*", expected: "burg*"},
		{
			name:     "complex query",
			input:    `"hundred years" -france calais OR rouen`,
			expected: `"hundred years" NOT france AND calais OR rouen`,
		},
		{name: "NOT operator", input: "war NOT france", expected: "war NOT france"},
		{name: "leading operator dropped", input: "OR england", expected: "england"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := convertWebsearchToFTS5(tt.input)
			if result != tt.expected {
				t.Errorf("convertWebsearchToFTS5(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		want    string
		wantErr bool
	}{
		{name: "relative", dsn: "sqlite://.historia/saves.db", want: "./.historia/saves.db"},
		{name: "absolute", dsn: "sqlite:///tmp/saves.db", want: "/tmp/saves.db"},
		{name: "query kept", dsn: "sqlite://saves.db?cache=shared", want: "./saves.db?cache=shared"},
		{name: "memory", dsn: "sqlite://:memory:", want: ":memory:"},
		{name: "escaped", dsn: "sqlite://my%20saves.db", want: "./my saves.db"},
		{name: "wrong scheme", dsn: "postgres://localhost/db", wantErr: true},
		{name: "no path", dsn: "sqlite://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDSN(tt.dsn)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.dsn)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSplitStatementsKeepsTriggerBodies(t *testing.T) {
	ddl := `
	CREATE TABLE a (id INTEGER);
	-- comment;
	CREATE TRIGGER t AFTER INSERT ON a BEGIN
		INSERT INTO b VALUES (new.id);
		INSERT INTO c VALUES (new.id);
	END;
	CREATE INDEX i ON a (id);
	`
	stmts := splitStatements(ddl)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
}

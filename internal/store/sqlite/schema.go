package sqlite

import (
	"context"
	"fmt"
	"strings"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS saved_games (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		scenario    TEXT NOT NULL DEFAULT '',
		turn        INTEGER NOT NULL DEFAULT 0,
		auto        INTEGER NOT NULL DEFAULT 0,
		narrative   TEXT NOT NULL DEFAULT '',
		payload     TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_saved_games_updated ON saved_games (updated_at);

	CREATE VIRTUAL TABLE IF NOT EXISTS saved_games_fts USING fts5(
		name,
		scenario,
		narrative,
		content=saved_games,
		content_rowid=rowid
	);

	CREATE TRIGGER IF NOT EXISTS saved_games_ai AFTER INSERT ON saved_games BEGIN
		INSERT INTO saved_games_fts(rowid, name, scenario, narrative)
		VALUES (new.rowid, new.name, new.scenario, new.narrative);
	END;

	CREATE TRIGGER IF NOT EXISTS saved_games_ad AFTER DELETE ON saved_games BEGIN
		INSERT INTO saved_games_fts(saved_games_fts, rowid, name, scenario, narrative)
		VALUES ('delete', old.rowid, old.name, old.scenario, old.narrative);
	END;

	CREATE TRIGGER IF NOT EXISTS saved_games_au AFTER UPDATE ON saved_games BEGIN
		INSERT INTO saved_games_fts(saved_games_fts, rowid, name, scenario, narrative)
		VALUES ('delete', old.rowid, old.name, old.scenario, old.narrative);
		INSERT INTO saved_games_fts(rowid, name, scenario, narrative)
		VALUES (new.rowid, new.name, new.scenario, new.narrative);
	END;
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}
	return nil
}

// splitStatements splits DDL on statement-ending semicolons. Trigger bodies
// are kept whole because their inner statements end mid-block.
func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder
	inTrigger := false

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasPrefix(strings.ToUpper(stripped), "CREATE TRIGGER") {
			inTrigger = true
		}
		if inTrigger {
			if strings.EqualFold(stripped, "END;") {
				inTrigger = false
				statements = append(statements, current.String())
				current.Reset()
			}
			continue
		}
		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}

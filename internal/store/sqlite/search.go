package sqlite

import (
	"context"
	"fmt"
	"strings"

	"openhistoria/internal/store"
)

// SearchGames runs a full-text query over save names, scenarios and the
// story so far.
func (c *Client) SearchGames(ctx context.Context, query string) ([]store.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	rows, err := c.db.QueryContext(ctx, `
	SELECT g.id, g.name, g.scenario, g.turn, g.auto, g.updated_at,
		   bm25(saved_games_fts, 10.0, 4.0, 1.0) AS score,
		   snippet(saved_games_fts, 2, '**', '**', '...', 24) AS snippet
	FROM saved_games_fts
	JOIN saved_games g ON saved_games_fts.rowid = g.rowid
	WHERE saved_games_fts MATCH ?
	ORDER BY score ASC, g.name ASC
	LIMIT 50
	`, convertWebsearchToFTS5(query))
	if err != nil {
		return nil, fmt.Errorf("searching games: %w", err)
	}
	defer rows.Close()

	results := []store.SearchResult{}
	for rows.Next() {
		var r store.SearchResult
		s, err := scanSummary(rows, &r.Score, &r.Snippet)
		if err != nil {
			return nil, err
		}
		r.GameSummary = s
		// bm25 ranks better matches lower.
		r.Score = -r.Score
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return results, nil
}

// convertWebsearchToFTS5 translates websearch-style syntax (quoted phrases,
// -negation, OR, prefix*) into an FTS5 MATCH expression.
func convertWebsearchToFTS5(query string) string {
	var result strings.Builder
	var current strings.Builder
	inQuote := false

	write := func(term string, negated bool) {
		if result.Len() > 0 {
			switch last := lastWord(result.String()); {
			case negated:
				result.WriteString(" NOT ")
				result.WriteString(term)
				return
			case last == "AND" || last == "OR" || last == "NOT":
				result.WriteString(" ")
			default:
				result.WriteString(" AND ")
			}
		} else if negated {
			// FTS5 has no unary NOT; a leading negation is kept as a plain term.
			result.WriteString(term)
			return
		}
		result.WriteString(term)
	}

	flushToken := func() {
		token := current.String()
		current.Reset()
		if token == "" {
			return
		}
		switch upper := strings.ToUpper(token); upper {
		case "AND", "OR", "NOT":
			if result.Len() > 0 {
				result.WriteString(" ")
				result.WriteString(upper)
			}
			return
		}
		if strings.HasPrefix(token, "-") && len(token) > 1 {
			write(token[1:], true)
			return
		}
		write(token, false)
	}

	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '"':
			if inQuote {
				inQuote = false
				phrase := current.String()
				current.Reset()
				if phrase != "" {
					write(`"`+phrase+`"`, false)
				}
			} else {
				flushToken()
				inQuote = true
			}
		case inQuote:
			current.WriteByte(ch)
		case ch == ' ' || ch == '\t':
			flushToken()
		default:
			current.WriteByte(ch)
		}
	}
	flushToken()

	return result.String()
}

func lastWord(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}

package postgres

import (
	"context"
	"fmt"
	"strings"

	"openhistoria/internal/store"
)

func (c *Client) SearchGames(ctx context.Context, query string) ([]store.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	sql := `
SELECT id, name, scenario, turn, auto, updated_at,
    ts_rank(search_vector, websearch_to_tsquery('english', $1)) AS score,
    CASE WHEN narrative <> '' THEN
        ts_headline('english', narrative, websearch_to_tsquery('english', $1),
            'MaxFragments=2, MaxWords=24, MinWords=8, StartSel=**, StopSel=**')
    ELSE '' END AS snippet
FROM saved_games
WHERE search_vector @@ websearch_to_tsquery('english', $1)
ORDER BY score DESC, name ASC
LIMIT 50
`

	rows, err := c.pool.Query(ctx, sql, query)
	if err != nil {
		return nil, fmt.Errorf("searching games: %w", err)
	}
	defer rows.Close()

	results := []store.SearchResult{}
	for rows.Next() {
		var r store.SearchResult
		err := rows.Scan(&r.ID, &r.Name, &r.Scenario, &r.Turn, &r.Auto, &r.UpdatedAt, &r.Score, &r.Snippet)
		if err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return results, nil
}

package graph

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"openhistoria/internal/world"
)

var relTypePattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

// ExportStats counts what ExportWorld wrote.
type ExportStats struct {
	Nations   int
	Provinces int
	Owned     int
	Relations int
	Events    int
}

// relationshipType maps a diplomatic stance to a Cypher relationship type.
func relationshipType(t world.RelationType) (string, error) {
	var rel string
	switch t {
	case world.RelationWar:
		rel = "AT_WAR_WITH"
	case world.RelationAllied:
		rel = "ALLIED_WITH"
	case world.RelationVassal:
		rel = "VASSAL_OF"
	default:
		rel = strings.ToUpper(strings.TrimSpace(string(t))) + "_TOWARDS"
	}
	if !relTypePattern.MatchString(rel) {
		return "", fmt.Errorf("invalid relationship type: %s", t)
	}
	return rel, nil
}

func nationRows(state world.State) []map[string]any {
	rows := make([]map[string]any, 0, len(state.Nations))
	for _, n := range state.Nations {
		rows = append(rows, map[string]any{
			"id":       n.ID,
			"name":     n.Name,
			"color":    n.Color,
			"treasury": n.Treasury,
			"player":   n.ID == world.PlayerID,
		})
	}
	return rows
}

func provinceRows(state world.State) []map[string]any {
	rows := make([]map[string]any, 0, len(state.Provinces))
	for _, p := range state.Provinces {
		rows = append(rows, map[string]any{
			"id":             p.ID,
			"name":           p.Name,
			"owner":          p.Owner(),
			"parent_country": p.ParentCountryID,
			"sub_national":   p.IsSubNational,
			"population":     p.Resources.Population,
			"defense":        p.Resources.Defense,
			"economy":        p.Resources.Economy,
			"technology":     p.Resources.Technology,
		})
	}
	return rows
}

// relationRows groups relation rows by Cypher relationship type, since a
// type cannot be parameterized.
func relationRows(state world.State) (map[string][]map[string]any, error) {
	grouped := map[string][]map[string]any{}
	for _, r := range state.Relations {
		rel, err := relationshipType(r.Type)
		if err != nil {
			return nil, err
		}
		treaties := r.Treaties
		if treaties == nil {
			treaties = []string{}
		}
		grouped[rel] = append(grouped[rel], map[string]any{
			"a":        r.NationA,
			"b":        r.NationB,
			"stance":   string(r.Type),
			"treaties": treaties,
		})
	}
	return grouped, nil
}

func eventRows(state world.State) []map[string]any {
	rows := make([]map[string]any, 0, len(state.Events))
	for _, e := range state.Events {
		rows = append(rows, map[string]any{
			"id":          e.ID,
			"year":        e.Year,
			"description": e.Description,
			"type":        string(e.Type),
		})
	}
	return rows
}

// ExportWorld replaces the graph for gameID with the given state. Nations
// and provinces are merged so external annotations on those nodes survive;
// ownership, diplomacy and events are rewritten.
func (c *Client) ExportWorld(ctx context.Context, gameID string, state world.State) (*ExportStats, error) {
	if strings.TrimSpace(gameID) == "" {
		return nil, fmt.Errorf("game id is required")
	}
	relations, err := relationRows(state)
	if err != nil {
		return nil, err
	}

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	stats := &ExportStats{}
	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		*stats = ExportStats{}
		params := map[string]any{"game": gameID}

		if _, err := tx.Run(ctx, `
MATCH (:Nation {game: $game})-[r]->()
DELETE r`, params); err != nil {
			return nil, fmt.Errorf("clearing relationships: %w", err)
		}
		if _, err := tx.Run(ctx, `MATCH (e:Event {game: $game}) DETACH DELETE e`, params); err != nil {
			return nil, fmt.Errorf("clearing events: %w", err)
		}

		if _, err := tx.Run(ctx, `
UNWIND $rows AS row
MERGE (n:Nation {game: $game, id: row.id})
SET n.name = row.name, n.color = row.color, n.treasury = row.treasury, n.player = row.player`,
			map[string]any{"game": gameID, "rows": nationRows(state)}); err != nil {
			return nil, fmt.Errorf("merging nations: %w", err)
		}
		stats.Nations = len(state.Nations)

		res, err := tx.Run(ctx, `
UNWIND $rows AS row
MERGE (p:Province {game: $game, id: row.id})
SET p.name = row.name,
    p.parent_country = row.parent_country,
    p.sub_national = row.sub_national,
    p.population = row.population,
    p.defense = row.defense,
    p.economy = row.economy,
    p.technology = row.technology
WITH p, row
MATCH (n:Nation {game: $game, id: row.owner})
MERGE (n)-[:OWNS]->(p)
RETURN count(p) AS owned`,
			map[string]any{"game": gameID, "rows": provinceRows(state)})
		if err != nil {
			return nil, fmt.Errorf("merging provinces: %w", err)
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting owned provinces: %w", err)
		}
		if owned, ok := record.Get("owned"); ok {
			if n, ok := owned.(int64); ok {
				stats.Owned = int(n)
			}
		}
		stats.Provinces = len(state.Provinces)

		for rel, rows := range relations {
			query := fmt.Sprintf(`
UNWIND $rows AS row
MATCH (a:Nation {game: $game, id: row.a})
MATCH (b:Nation {game: $game, id: row.b})
MERGE (a)-[r:%s]->(b)
SET r.stance = row.stance, r.treaties = row.treaties`, rel)
			if _, err := tx.Run(ctx, query, map[string]any{"game": gameID, "rows": rows}); err != nil {
				return nil, fmt.Errorf("merging %s relations: %w", rel, err)
			}
			stats.Relations += len(rows)
		}

		if _, err := tx.Run(ctx, `
UNWIND $rows AS row
CREATE (e:Event {game: $game, id: row.id})
SET e.year = row.year, e.description = row.description, e.type = row.type`,
			map[string]any{"game": gameID, "rows": eventRows(state)}); err != nil {
			return nil, fmt.Errorf("creating events: %w", err)
		}
		stats.Events = len(state.Events)

		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("exporting world: %w", err)
	}
	return stats, nil
}

// Package graph mirrors a world into Neo4j so ownership and diplomacy can be
// explored with Cypher.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewClient(ctx context.Context, uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verifying neo4j connectivity: %w", err)
	}

	return &Client{driver: driver, database: database}, nil
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}

func (c *Client) EnsureIndexes(ctx context.Context) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	statements := []string{
		`CREATE CONSTRAINT nation_unique_game_id IF NOT EXISTS
FOR (n:Nation) REQUIRE (n.game, n.id) IS UNIQUE`,
		`CREATE CONSTRAINT province_unique_game_id IF NOT EXISTS
FOR (p:Province) REQUIRE (p.game, p.id) IS UNIQUE`,
		`CREATE FULLTEXT INDEX world_names IF NOT EXISTS
FOR (n:Nation|Province) ON EACH [n.name]`,
		`CREATE INDEX event_game_year IF NOT EXISTS FOR (e:Event) ON (e.game, e.year)`,
	}

	for _, stmt := range statements {
		if _, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, stmt, nil)
			return nil, err
		}); err != nil {
			return fmt.Errorf("ensuring indexes: %w", err)
		}
	}

	return nil
}

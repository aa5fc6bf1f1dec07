package migrations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

func init() {
	goose.AddMigrationContext(upTagsToJSON, downTagsToCSV)
}

// upTagsToJSON rewrites the comma separated article tags into JSON arrays.
func upTagsToJSON(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "SELECT id, tags FROM article")
	if err != nil {
		return fmt.Errorf("getting all articles: %w", err)
	}

	converted := make(map[string]string)
	for rows.Next() {
		var id, tags string
		if err := rows.Scan(&id, &tags); err != nil {
			rows.Close()
			return fmt.Errorf("scanning article row: %w", err)
		}

		list := []string{}
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				list = append(list, tag)
			}
		}
		encoded, err := json.Marshal(list)
		if err != nil {
			rows.Close()
			return fmt.Errorf("encoding tags for article %s : %w", id, err)
		}
		converted[id] = string(encoded)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating rows: %w", err)
	}
	rows.Close()

	for id, tags := range converted {
		if _, err := tx.ExecContext(ctx, "UPDATE article SET tags = ? WHERE id = ?", tags, id); err != nil {
			return fmt.Errorf("updating article %s : %w", id, err)
		}
	}
	return nil
}

func downTagsToCSV(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "SELECT id, tags FROM article")
	if err != nil {
		return fmt.Errorf("failed to query existing articles for rollback: %w", err)
	}

	converted := make(map[string]string)
	for rows.Next() {
		var id, tags string
		if err := rows.Scan(&id, &tags); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan row for rollback: %w", err)
		}

		var list []string
		if tags != "" {
			if err := json.Unmarshal([]byte(tags), &list); err != nil {
				rows.Close()
				return fmt.Errorf("failed to decode tags of %s for rollback: %w", id, err)
			}
		}
		converted[id] = strings.Join(list, ",")
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("row iteration error during rollback: %w", err)
	}
	rows.Close()

	for id, tags := range converted {
		if _, err := tx.ExecContext(ctx, "UPDATE article SET tags = ? WHERE id = ?", tags, id); err != nil {
			return fmt.Errorf("failed to update row for id %s for rollback: %w", id, err)
		}
	}
	return nil
}

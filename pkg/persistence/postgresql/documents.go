package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// queryDocuments runs a query whose single selected column is a JSONB
// document and decodes every row.
func queryDocuments[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	items := make([]*T, 0)

	for rows.Next() {
		var data []byte

		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		item := new(T)
		if err := json.Unmarshal(data, item); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return items, nil
}

// getDocument decodes the single document matched by the query into v,
// returning notFound when no row matches.
func getDocument(ctx context.Context, db *sql.DB, query string, v any, notFound error, args ...any) error {
	var data []byte

	err := db.QueryRowContext(ctx, query, args...).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound
		}

		return fmt.Errorf("failed to query document: %w", err)
	}

	return json.Unmarshal(data, v)
}

package adapters

import "context"

// DBAdapter is the narrow surface the engine needs from a database client.
// Queries arrive fully rendered; no placeholder binding happens here.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBRows abstracts a result cursor.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
}

// DBResult abstracts the outcome of a statement.
type DBResult interface {
	RowsAffected() (int64, error)
}

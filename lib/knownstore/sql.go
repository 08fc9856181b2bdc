package knownstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	_ "modernc.org/sqlite"
)

const Schema = `
create table if not exists known_homework (
	key text primary key not null
);
`

// SQLStore keeps the set in a single table, saves rewrite the table in
// one transaction.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(ctx context.Context, db *sql.DB) (SQLStore, error) {
	_, err := db.ExecContext(ctx, Schema)
	if err != nil {
		return SQLStore{}, fmt.Errorf("create known_homework: %w", err)
	}
	return SQLStore{db: db}, nil
}

type DatabaseConfig struct {
	// a local sqlite file
	File string `json:"file"`
	// a libsql url (libsql://, https://, ws://...), takes precedence
	// over `file`
	Url string `json:"url"`
}

func (config DatabaseConfig) OpenDB() (*sql.DB, error) {
	if config.Url != "" {
		return sql.Open("libsql", config.Url)
	}
	if config.File == "" {
		return nil, fmt.Errorf("a database file or url was not specified")
	}

	db, err := sql.Open("sqlite", config.File)
	if err != nil {
		return nil, err
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s SQLStore) Load(ctx context.Context) (Set, error) {
	ctx, span := tracer.Start(ctx, "sql:Load")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, "select key from known_homework")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query known set")
		return nil, err
	}
	defer rows.Close()

	set := Set{}
	for rows.Next() {
		var key string
		err = rows.Scan(&key)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to scan key")
			return nil, err
		}
		set.Add(key)
	}
	err = rows.Err()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read rows")
		return nil, err
	}
	span.SetAttributes(attribute.Int("keys", len(set)))
	return set, nil
}

func (s SQLStore) Save(ctx context.Context, set Set) error {
	ctx, span := tracer.Start(ctx, "sql:Save")
	defer span.End()
	span.SetAttributes(attribute.Int("keys", len(set)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to begin transaction")
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "delete from known_homework")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to clear known set")
		return err
	}

	keys := set.Keys()
	// stay well below sqlite's bound parameter limit
	const batch = 200
	for start := 0; start < len(keys); start += batch {
		end := min(start+batch, len(keys))
		chunk := keys[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("(?),", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, k := range chunk {
			args[i] = k
		}
		_, err = tx.ExecContext(ctx, "insert into known_homework (key) values "+placeholders, args...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to insert keys")
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit transaction")
		return err
	}
	return nil
}

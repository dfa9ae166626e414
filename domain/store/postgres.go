package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lattice-data/gateway/domain/document"
	"github.com/lattice-data/gateway/domain/filter"
	"github.com/lattice-data/gateway/pkg/storage/postgres"
)

// DocumentColumn, IDColumn, and SequenceColumn are the fixed column names
// every collection table uses: a text primary key, a JSONB payload, and a
// monotonic bigserial cursor column for sequence-based pagination.
const (
	DocumentColumn = "data"
	IDColumn       = "id"
	SequenceColumn = "seq"
)

// PostgresStore implements Store against one JSONB-per-row table per
// collection, reusing the shared connection/transaction plumbing every
// other table-backed store in this service uses.
type PostgresStore struct {
	base *postgres.BaseStore
}

// NewPostgresStore wires a PostgresStore over base. The collection table is
// supplied per call, so base's own table name is not used.
func NewPostgresStore(base *postgres.BaseStore) *PostgresStore {
	return &PostgresStore{base: base}
}

func (s *PostgresStore) Find(ctx context.Context, collection string, pred filter.Predicate, opts filter.Options) ([]document.Document, error) {
	orderBy, limit, offset := filter.TranslateOptions(opts, DocumentColumn, IDColumn)

	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s", IDColumn, DocumentColumn, collection, pred.SQL)
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", offset)
	}

	rows, err := s.base.QueryContext(ctx, query, pred.Args...)
	if err != nil {
		return nil, fmt.Errorf("store: find in %s: %w", collection, err)
	}
	defer rows.Close()

	var out []document.Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		doc, err := decodeRow(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindOne(ctx context.Context, collection string, pred filter.Predicate) (document.Document, bool, error) {
	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s LIMIT 1", IDColumn, DocumentColumn, collection, pred.SQL)
	var id string
	var raw []byte
	err := s.base.QueryRowContext(ctx, query, pred.Args...).Scan(&id, &raw)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: find one in %s: %w", collection, err)
	}
	doc, err := decodeRow(id, raw)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *PostgresStore) Count(ctx context.Context, collection string, pred filter.Predicate) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", collection, pred.SQL)
	var n int
	if err := s.base.QueryRowContext(ctx, query, pred.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count in %s: %w", collection, err)
	}
	return n, nil
}

func (s *PostgresStore) Insert(ctx context.Context, collection string, docs []document.Document) ([]string, error) {
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id, _ := doc[document.FieldID].(string)
		if id == "" {
			id = document.NewID()
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("store: marshal document: %w", err)
		}
		query := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES ($1, $2::jsonb)", collection, IDColumn, DocumentColumn)
		if _, err := s.base.ExecContext(ctx, query, id, payload); err != nil {
			return nil, fmt.Errorf("store: insert into %s: %w", collection, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *PostgresStore) ReplaceByID(ctx context.Context, collection, id string, doc document.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: marshal document: %w", err)
	}
	query := fmt.Sprintf("UPDATE %s SET %s = $2::jsonb WHERE %s = $1", collection, DocumentColumn, IDColumn)
	if _, err := s.base.ExecContext(ctx, query, id, payload); err != nil {
		return fmt.Errorf("store: replace in %s: %w", collection, err)
	}
	return nil
}

func (s *PostgresStore) DeleteMatching(ctx context.Context, collection string, pred filter.Predicate) (int, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", collection, pred.SQL)
	result, err := s.base.ExecContext(ctx, query, pred.Args...)
	if err != nil {
		return 0, fmt.Errorf("store: delete from %s: %w", collection, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: rows affected: %w", err)
	}
	return int(n), nil
}

// FindAfterSequence stamps each returned document with its sequence value
// under document.FieldSequence so the caller can read the cursor for the
// last row actually kept after trimming a probe page.
func (s *PostgresStore) FindAfterSequence(ctx context.Context, collection string, after int64, limit int) ([]document.Document, int64, error) {
	query := fmt.Sprintf("SELECT %s, %s, %s FROM %s WHERE %s > $1 ORDER BY %s ASC LIMIT $2",
		IDColumn, DocumentColumn, SequenceColumn, collection, SequenceColumn, SequenceColumn)
	rows, err := s.base.QueryContext(ctx, query, after, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("store: find after sequence in %s: %w", collection, err)
	}
	defer rows.Close()

	var out []document.Document
	var lastSeq int64
	for rows.Next() {
		var id string
		var raw []byte
		var seq int64
		if err := rows.Scan(&id, &raw, &seq); err != nil {
			return nil, 0, fmt.Errorf("store: scan row: %w", err)
		}
		doc, err := decodeRow(id, raw)
		if err != nil {
			return nil, 0, err
		}
		doc[document.FieldSequence] = seq
		out = append(out, doc)
		lastSeq = seq
	}
	return out, lastSeq, rows.Err()
}

func decodeRow(id string, raw []byte) (document.Document, error) {
	var doc document.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("store: unmarshal document %s: %w", id, err)
	}
	if doc == nil {
		doc = document.Document{}
	}
	doc[document.FieldID] = id
	return doc, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

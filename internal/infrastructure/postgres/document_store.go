package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
)

var _ repository.DocumentStore = (*DocumentStore)(nil)

// Schema tabla única de documentos JSONB, una fila por (colección, id).
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	version    BIGINT      NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

// DocumentStore implementa repository.DocumentStore sobre PostgreSQL.
// Cada transacción corre en aislamiento SERIALIZABLE; ante serialization_failure o deadlock
// se repite el closure completo hasta maxAttempts.
type DocumentStore struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

// NewDocumentStore construye el adaptador con el pool.
func NewDocumentStore(pool *pgxpool.Pool, maxAttempts int) *DocumentStore {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &DocumentStore{pool: pool, maxAttempts: maxAttempts}
}

// EnsureSchema crea la tabla de documentos si no existe.
func (s *DocumentStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("crear tabla documents: %w", err)
	}
	return nil
}

// Get lee un documento fuera de transacción.
func (s *DocumentStore) Get(ctx context.Context, collection, id string, dest any) error {
	return getDocument(ctx, s.pool, collection, id, dest)
}

// RunTransaction inicia la transacción, ejecuta fn con un Tx atado a ella y hace Commit o Rollback.
func (s *DocumentStore) RunTransaction(ctx context.Context, fn func(tx repository.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		if attempt < s.maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(20*attempt) * time.Millisecond):
			}
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrTransactionAborted, lastErr)
}

func (s *DocumentStore) runOnce(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getDocument(ctx context.Context, q queryRower, collection, id string, dest any) error {
	var data []byte
	err := q.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFound(collection, id)
		}
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// pgTx adapta pgx.Tx al contrato repository.Tx. ctx es el de RunTransaction.
type pgTx struct {
	ctx   context.Context
	tx    pgx.Tx
	wrote bool
}

func (t *pgTx) Get(collection, id string, dest any) error {
	if t.wrote {
		return domain.ErrReadAfterWrite
	}
	return getDocument(t.ctx, t.tx, collection, id, dest)
}

func (t *pgTx) Set(collection, id string, doc any) error {
	t.wrote = true
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	_, err = t.tx.Exec(t.ctx, `
		INSERT INTO documents (collection, id, data, version, updated_at)
		VALUES ($1, $2, $3, 1, now())
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, version = documents.version + 1, updated_at = now()`,
		collection, id, data,
	)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (t *pgTx) Update(collection, id string, fields map[string]any) error {
	t.wrote = true
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	tag, err := t.tx.Exec(t.ctx, `
		UPDATE documents
		SET data = data || $3::jsonb, version = version + 1, updated_at = now()
		WHERE collection = $1 AND id = $2`,
		collection, id, patch,
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound(collection, id)
	}
	return nil
}

func (t *pgTx) Delete(collection, id string) error {
	t.wrote = true
	if _, err := t.tx.Exec(t.ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (t *pgTx) Increment(collection, id, field string, delta int64) error {
	t.wrote = true
	tag, err := t.tx.Exec(t.ctx, `
		UPDATE documents
		SET data = jsonb_set(data, ARRAY[$3::text], to_jsonb(COALESCE((data->>$3)::bigint, 0) + $4::bigint)),
		    version = version + 1,
		    updated_at = now()
		WHERE collection = $1 AND id = $2`,
		collection, id, field, delta,
	)
	if err != nil {
		return fmt.Errorf("increment %s/%s.%s: %w", collection, id, field, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound(collection, id)
	}
	return nil
}

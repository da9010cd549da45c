// Package mongo implementa repository.DocumentStore sobre MongoDB con transacciones de sesión.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

var _ repository.DocumentStore = (*DocumentStore)(nil)

// Etiquetas de error del servidor. Solo la primera permite repetir el closure;
// la segunda indica que el commit pudo aplicarse y solo se reintenta el commit.
const (
	labelTransientTransaction = "TransientTransactionError"
	labelUnknownCommitResult  = "UnknownTransactionCommitResult"
)

// DocumentStore guarda cada colección lógica en una colección MongoDB; el id del documento es _id.
// Los documentos pasan por JSON (mismo formato que memory y postgres) y se convierten a BSON
// con Extended JSON relajado.
type DocumentStore struct {
	client      *mongo.Client
	db          *mongo.Database
	maxAttempts int
	backoff     time.Duration
}

// NewDocumentStore construye el adaptador.
func NewDocumentStore(client *mongo.Client, db *mongo.Database, maxAttempts int) *DocumentStore {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &DocumentStore{client: client, db: db, maxAttempts: maxAttempts, backoff: 20 * time.Millisecond}
}

// Get lee un documento fuera de transacción.
func (s *DocumentStore) Get(ctx context.Context, collection, id string, dest any) error {
	return findDocument(ctx, s.db, collection, id, dest)
}

// RunTransaction ejecuta fn dentro de una transacción de sesión con snapshot + majority.
// Un error TransientTransactionError repite fn completo; UnknownTransactionCommitResult
// repite solo CommitTransaction, así un commit ya aplicado no vuelve a ejecutar las escrituras.
func (s *DocumentStore) RunTransaction(ctx context.Context, fn func(tx repository.Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("iniciar sesión MongoDB: %w", err)
	}
	defer session.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	return mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		body := func() error {
			if err := session.StartTransaction(txOpts); err != nil {
				return fmt.Errorf("start transaction: %w", err)
			}
			if err := fn(&mongoTx{ctx: sc, db: s.db}); err != nil {
				_ = session.AbortTransaction(sc)
				return err
			}
			return nil
		}
		commit := func() error { return session.CommitTransaction(sc) }
		return runWithRetry(sc, s.maxAttempts, s.backoff, body, commit)
	})
}

// runWithRetry ejecuta body y luego commit, hasta maxAttempts veces cada uno.
// body se repite solo ante TransientTransactionError (en body o en commit).
func runWithRetry(ctx context.Context, maxAttempts int, backoff time.Duration, body, commit func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := body()
		if err == nil {
			err = commitWithRetry(maxAttempts, commit)
			if err == nil {
				return nil
			}
			if hasLabel(err, labelUnknownCommitResult) {
				return fmt.Errorf("%w: resultado del commit desconocido: %v", domain.ErrTransactionAborted, err)
			}
		}
		if !hasLabel(err, labelTransientTransaction) {
			return err
		}
		lastErr = err
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * backoff):
			}
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrTransactionAborted, lastErr)
}

// commitWithRetry reintenta commit mientras el servidor no sepa si se aplicó.
func commitWithRetry(maxAttempts int, commit func() error) error {
	var err error
	for i := 0; i < maxAttempts; i++ {
		err = commit()
		if err == nil || !hasLabel(err, labelUnknownCommitResult) {
			return err
		}
	}
	return err
}

func hasLabel(err error, label string) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel(label)
	}
	return false
}

func findDocument(ctx context.Context, db *mongo.Database, collection, id string, dest any) error {
	raw, err := db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).DecodeBytes()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.NewNotFound(collection, id)
		}
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return fmt.Errorf("bson->json %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// toBSON convierte un valor JSON-serializable a bson.M.
func toBSON(v any) (bson.M, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON(data, false, &m); err != nil {
		return nil, err
	}
	return m, nil
}

type mongoTx struct {
	ctx   mongo.SessionContext
	db    *mongo.Database
	wrote bool
}

func (t *mongoTx) Get(collection, id string, dest any) error {
	if t.wrote {
		return domain.ErrReadAfterWrite
	}
	return findDocument(t.ctx, t.db, collection, id, dest)
}

func (t *mongoTx) Set(collection, id string, doc any) error {
	t.wrote = true
	m, err := toBSON(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	m["_id"] = id
	_, err = t.db.Collection(collection).ReplaceOne(t.ctx, bson.M{"_id": id}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (t *mongoTx) Update(collection, id string, fields map[string]any) error {
	t.wrote = true
	m, err := toBSON(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	res, err := t.db.Collection(collection).UpdateOne(t.ctx, bson.M{"_id": id}, bson.M{"$set": m})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return domain.NewNotFound(collection, id)
	}
	return nil
}

func (t *mongoTx) Delete(collection, id string) error {
	t.wrote = true
	if _, err := t.db.Collection(collection).DeleteOne(t.ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (t *mongoTx) Increment(collection, id, field string, delta int64) error {
	t.wrote = true
	res, err := t.db.Collection(collection).UpdateOne(t.ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return fmt.Errorf("increment %s/%s.%s: %w", collection, id, field, err)
	}
	if res.MatchedCount == 0 {
		return domain.NewNotFound(collection, id)
	}
	return nil
}

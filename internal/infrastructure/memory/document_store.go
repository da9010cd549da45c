// Package memory implementa repository.DocumentStore en proceso, con control optimista por versión.
// Se usa en desarrollo (STORE_DRIVER=memory) y en los tests de los casos de uso.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
)

var _ repository.DocumentStore = (*DocumentStore)(nil)

const (
	DefaultMaxAttempts = 5
	defaultBackoff     = 5 * time.Millisecond
)

type key struct {
	collection string
	id         string
}

type record struct {
	data    []byte
	version uint64
}

// DocumentStore guarda documentos JSON con una versión por documento. Una transacción registra la
// versión de cada lectura y al hacer commit verifica que ninguna haya cambiado; si cambió, descarta
// sus escrituras y reintenta el closure completo.
type DocumentStore struct {
	mu          sync.Mutex
	docs        map[key]record
	seq         uint64
	maxAttempts int
	backoff     time.Duration
}

// Option configura el DocumentStore.
type Option func(*DocumentStore)

// WithMaxAttempts número máximo de ejecuciones del closure ante conflictos.
func WithMaxAttempts(n int) Option {
	return func(s *DocumentStore) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff espera base entre reintentos (se multiplica por el número de intento).
func WithBackoff(d time.Duration) Option {
	return func(s *DocumentStore) { s.backoff = d }
}

// NewDocumentStore construye un almacén vacío.
func NewDocumentStore(opts ...Option) *DocumentStore {
	s := &DocumentStore{
		docs:        make(map[key]record),
		maxAttempts: DefaultMaxAttempts,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get lee un documento fuera de transacción.
func (s *DocumentStore) Get(_ context.Context, collection, id string, dest any) error {
	rec, ok := s.load(key{collection, id})
	if !ok {
		return domain.NewNotFound(collection, id)
	}
	if err := json.Unmarshal(rec.data, dest); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// RunTransaction ejecuta fn y hace commit optimista; reintenta ante conflicto hasta maxAttempts.
func (s *DocumentStore) RunTransaction(ctx context.Context, fn func(tx repository.Tx) error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &memTx{store: s, reads: make(map[key]uint64)}
		if err := fn(tx); err != nil {
			return err
		}
		committed, err := s.commit(tx)
		if err != nil {
			return err
		}
		if committed {
			return nil
		}
		if attempt < s.maxAttempts && s.backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}
	}
	return fmt.Errorf("%w: %d intentos con conflicto", domain.ErrTransactionAborted, s.maxAttempts)
}

func (s *DocumentStore) load(k key) (record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[k]
	return rec, ok
}

// commit valida el read-set y aplica las escrituras de forma atómica.
// Devuelve false (sin error) cuando hubo conflicto y la transacción debe reintentarse.
func (s *DocumentStore) commit(tx *memTx) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, readVersion := range tx.reads {
		if s.docs[k].version != readVersion {
			return false, nil
		}
	}

	// Las escrituras se aplican sobre una vista temporal; solo si todas son válidas se publican.
	staged := make(map[key]*record)
	current := func(k key) *record {
		if r, ok := staged[k]; ok {
			return r
		}
		if r, ok := s.docs[k]; ok {
			c := r
			staged[k] = &c
			return &c
		}
		staged[k] = nil
		return nil
	}

	for _, w := range tx.writes {
		switch w.kind {
		case opSet:
			staged[w.key] = &record{data: w.data}
		case opDelete:
			staged[w.key] = nil
		case opUpdate:
			r := current(w.key)
			if r == nil {
				return false, domain.NewNotFound(w.key.collection, w.key.id)
			}
			data, err := mergeFields(r.data, w.fields)
			if err != nil {
				return false, err
			}
			staged[w.key] = &record{data: data}
		case opIncrement:
			r := current(w.key)
			if r == nil {
				return false, domain.NewNotFound(w.key.collection, w.key.id)
			}
			data, err := incrementField(r.data, w.field, w.delta)
			if err != nil {
				return false, err
			}
			staged[w.key] = &record{data: data}
		}
	}

	for k, r := range staged {
		if r == nil {
			delete(s.docs, k)
			continue
		}
		s.seq++
		r.version = s.seq
		s.docs[k] = *r
	}
	return true, nil
}

func mergeFields(data []byte, fields map[string]json.RawMessage) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode documento: %w", err)
	}
	for name, value := range fields {
		doc[name] = value
	}
	return json.Marshal(doc)
}

func incrementField(data []byte, field string, delta int64) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode documento: %w", err)
	}
	var current int64
	if raw, ok := doc[field]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &current); err != nil {
			return nil, fmt.Errorf("campo %s no es entero: %w", field, err)
		}
	}
	value, err := json.Marshal(current + delta)
	if err != nil {
		return nil, err
	}
	doc[field] = value
	return json.Marshal(doc)
}

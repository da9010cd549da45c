package memory

import (
	"encoding/json"
	"fmt"

	"github.com/jhoicas/pos-ledger/internal/domain"
)

type opKind int

const (
	opSet opKind = iota
	opUpdate
	opDelete
	opIncrement
)

type writeOp struct {
	kind   opKind
	key    key
	data   []byte
	fields map[string]json.RawMessage
	field  string
	delta  int64
}

// memTx acumula lecturas (con su versión) y escrituras pendientes hasta el commit.
type memTx struct {
	store  *DocumentStore
	reads  map[key]uint64
	writes []writeOp
}

func (t *memTx) Get(collection, id string, dest any) error {
	if len(t.writes) > 0 {
		return domain.ErrReadAfterWrite
	}
	k := key{collection, id}
	rec, ok := t.store.load(k)
	// Un documento ausente se registra con versión 0: si alguien lo crea antes del commit, hay conflicto.
	t.reads[k] = rec.version
	if !ok {
		return domain.NewNotFound(collection, id)
	}
	if err := json.Unmarshal(rec.data, dest); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return nil
}

func (t *memTx) Set(collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	t.writes = append(t.writes, writeOp{kind: opSet, key: key{collection, id}, data: data})
	return nil
}

func (t *memTx) Update(collection, id string, fields map[string]any) error {
	encoded := make(map[string]json.RawMessage, len(fields))
	for name, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s/%s.%s: %w", collection, id, name, err)
		}
		encoded[name] = raw
	}
	t.writes = append(t.writes, writeOp{kind: opUpdate, key: key{collection, id}, fields: encoded})
	return nil
}

func (t *memTx) Delete(collection, id string) error {
	t.writes = append(t.writes, writeOp{kind: opDelete, key: key{collection, id}})
	return nil
}

func (t *memTx) Increment(collection, id, field string, delta int64) error {
	t.writes = append(t.writes, writeOp{kind: opIncrement, key: key{collection, id}, field: field, delta: delta})
	return nil
}

// Package redis publica los cambios de documentos por Redis pub/sub, un canal por colección.
// Reemplaza a los listeners de snapshot: los dashboards se suscriben y refrescan sus vistas.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/pos-ledger/internal/domain/repository"
)

var _ repository.ChangeNotifier = (*Notifier)(nil)

// NewClient construye el cliente Redis.
func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Notifier publica repository.Change en "<prefix>:<collection>".
type Notifier struct {
	client *goredis.Client
	prefix string
}

// NewNotifier construye el publicador. prefix vacío usa "changes".
func NewNotifier(client *goredis.Client, prefix string) *Notifier {
	if prefix == "" {
		prefix = "changes"
	}
	return &Notifier{client: client, prefix: prefix}
}

// Channel nombre del canal de una colección.
func (n *Notifier) Channel(collection string) string {
	return n.prefix + ":" + collection
}

// Ping verifica la conexión.
func (n *Notifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

// Close cierra el cliente.
func (n *Notifier) Close() error {
	return n.client.Close()
}

// Publish envía cada cambio a su canal. Se detiene en el primer error.
func (n *Notifier) Publish(ctx context.Context, changes ...repository.Change) error {
	for _, c := range changes {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode change: %w", err)
		}
		if err := n.client.Publish(ctx, n.Channel(c.Collection), payload).Err(); err != nil {
			return fmt.Errorf("publish %s/%s: %w", c.Collection, c.ID, err)
		}
	}
	return nil
}

// Subscribe entrega los cambios de las colecciones indicadas hasta que ctx termine.
// Los mensajes que no se pueden decodificar se descartan.
func (n *Notifier) Subscribe(ctx context.Context, collections ...string) (<-chan repository.Change, error) {
	channels := make([]string, 0, len(collections))
	for _, c := range collections {
		channels = append(channels, n.Channel(c))
	}
	sub := n.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan repository.Change)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c repository.Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

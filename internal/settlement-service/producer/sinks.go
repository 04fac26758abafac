package producer

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/radieske/scoreleague/pkg/contracts/events"
)

// Multi repassa o evento para todos os sinks; um erro não impede os demais
type Multi []events.Sink

func (m Multi) Emit(ctx context.Context, name string, payload any) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, name, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink só registra o evento (modo local, sem Kafka/Redis)
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) Emit(_ context.Context, name string, payload any) error {
	s.Log.Info("event", zap.String("event", name), zap.Any("payload", payload))
	return nil
}

type Recorded struct {
	Name    string
	Payload any
}

// Recorder guarda os eventos em memória
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func (r *Recorder) Emit(_ context.Context, name string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Name: name, Payload: payload})
	return nil
}

// Named retorna os payloads de um evento, na ordem de emissão
func (r *Recorder) Named(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e.Payload)
		}
	}
	return out
}

func (r *Recorder) Count(name string) int { return len(r.Named(name)) }

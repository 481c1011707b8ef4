package backplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lumenchat/lumen/internal/infrastructure/logging"
	"github.com/lumenchat/lumen/internal/infrastructure/metrics"
	"github.com/lumenchat/lumen/internal/infrastructure/ws"
)

// Ops propagated between edge instances.
const (
	opEmit  = "emit"
	opEvict = "evict"
)

var ErrNotStarted = errors.New("backplane: not started")

// frame is the wire format shared by all instances on the pub/sub channel.
type frame struct {
	Op      string      `json:"op"`
	Room    string      `json:"room"`
	Message *ws.Message `json:"message,omitempty"`
}

// Bus is the raw pub/sub transport under the backplane. The production
// implementation is a pair of dedicated Redis connections; tests use an
// in-process loopback.
type Bus interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
	Close() error
}

// Local is the instance-local half of a broadcast: the hub.
type Local interface {
	BroadcastLocal(room string, msg *ws.Message)
	EvictRoom(room string)
}

// Backplane makes room broadcast work across stateless edge instances.
// Every emit or evict is published once to the shared channel; each
// instance, the publisher included, applies it to its own hub when the
// frame comes back around. No instance needs to know where a room's
// members are connected.
type Backplane struct {
	bus     Bus
	local   Local
	logger  logging.Logger
	started bool
}

func New(bus Bus, local Local, logger logging.Logger) *Backplane {
	return &Backplane{
		bus:    bus,
		local:  local,
		logger: logger,
	}
}

// Start subscribes to the shared channel and applies incoming frames to the
// local hub until ctx is canceled.
func (b *Backplane) Start(ctx context.Context) error {
	frames, err := b.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("backplane subscribe failed: %w", err)
	}
	b.started = true

	go func() {
		for payload := range frames {
			var f frame
			if err := json.Unmarshal(payload, &f); err != nil {
				b.logger.Warn(logging.Backplane, logging.Broadcast, "malformed backplane frame", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
				continue
			}
			b.apply(f)
		}
	}()

	return nil
}

func (b *Backplane) apply(f frame) {
	switch f.Op {
	case opEmit:
		if f.Message != nil {
			b.local.BroadcastLocal(f.Room, f.Message)
		}
	case opEvict:
		b.local.EvictRoom(f.Room)
	default:
		b.logger.Warn(logging.Backplane, logging.Broadcast, "unknown backplane op", map[logging.ExtraKey]any{
			"op": f.Op,
		})
	}
}

// Emit broadcasts a message to a room on every instance.
func (b *Backplane) Emit(ctx context.Context, room string, msg *ws.Message) error {
	if !b.started {
		return ErrNotStarted
	}
	if err := b.publish(ctx, frame{Op: opEmit, Room: room, Message: msg}); err != nil {
		return err
	}
	metrics.Broadcasts.WithLabelValues(opEmit).Inc()
	return nil
}

// Evict forces a room empty on every instance.
func (b *Backplane) Evict(ctx context.Context, room string) error {
	if !b.started {
		return ErrNotStarted
	}
	if err := b.publish(ctx, frame{Op: opEvict, Room: room}); err != nil {
		return err
	}
	metrics.Broadcasts.WithLabelValues(opEvict).Inc()
	return nil
}

func (b *Backplane) publish(ctx context.Context, f frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode backplane frame: %w", err)
	}
	if err := b.bus.Publish(ctx, payload); err != nil {
		return fmt.Errorf("failed to publish backplane frame: %w", err)
	}
	return nil
}

func (b *Backplane) Close() error {
	return b.bus.Close()
}

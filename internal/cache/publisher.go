package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

type writeKind uint8

const (
	writeState writeKind = iota
	writePlayers
	writeEvent
)

type write struct {
	kind    writeKind
	data    []byte
	players map[string]any
}

// Event is published on ChannelArenaEvent.
type Event struct {
	Type string `json:"type"`
	At   int64  `json:"at_ms"`
	Data any    `json:"data,omitempty"`
}

// Publisher mirrors the live arena into redis for observers outside the
// game server. Enqueueing never blocks the tick loop; writes are dropped when
// the buffer is full.
type Publisher struct {
	rdb     *redis.Client
	queue   chan write
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewPublisher(rdb *redis.Client, buffer int, logger *slog.Logger) *Publisher {
	return &Publisher{
		rdb:    rdb,
		queue:  make(chan write, buffer),
		logger: logger,
	}
}

// State stores the current round snapshot under KeyArenaState.
func (p *Publisher) State(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("encode arena state", "err", err)
		return
	}
	p.enqueue(write{kind: writeState, data: data})
}

// Players replaces the KeyArenaPlayers hash, keyed by entity id.
func (p *Publisher) Players(byID map[uint64]any) {
	fields := make(map[string]any, len(byID))
	for id, v := range byID {
		data, err := json.Marshal(v)
		if err != nil {
			p.logger.Error("encode arena player", "player", id, "err", err)
			continue
		}
		fields[strconv.FormatUint(id, 10)] = data
	}
	p.enqueue(write{kind: writePlayers, players: fields})
}

// Event publishes a round event on ChannelArenaEvent.
func (p *Publisher) Event(typ string, data any) {
	b, err := json.Marshal(Event{Type: typ, At: time.Now().UnixMilli(), Data: data})
	if err != nil {
		p.logger.Error("encode arena event", "type", typ, "err", err)
		return
	}
	p.enqueue(write{kind: writeEvent, data: b})
}

// Dropped returns the number of writes discarded on a full buffer.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) enqueue(w write) {
	select {
	case p.queue <- w:
	default:
		p.dropped.Add(1)
		p.logger.Warn("redis publish dropped, buffer full")
	}
}

// Run drains the queue until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case w := <-p.queue:
			if err := p.flush(ctx, w); err != nil {
				p.logger.Warn("redis publish", "err", err)
			}
		}
	}
}

func (p *Publisher) flush(ctx context.Context, w write) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	switch w.kind {
	case writeState:
		if err := p.rdb.Set(ctx, KeyArenaState, w.data, 0).Err(); err != nil {
			return fmt.Errorf("set %s: %w", KeyArenaState, err)
		}
	case writePlayers:
		_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, KeyArenaPlayers)
			if len(w.players) > 0 {
				pipe.HSet(ctx, KeyArenaPlayers, w.players)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("replace %s: %w", KeyArenaPlayers, err)
		}
	case writeEvent:
		if err := p.rdb.Publish(ctx, ChannelArenaEvent, w.data).Err(); err != nil {
			return fmt.Errorf("publish %s: %w", ChannelArenaEvent, err)
		}
	}
	return nil
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"FxBridge/internal/domain/models"
	applogger "FxBridge/pkg/logger"
	"FxBridge/pkg/queue"
)

// RedisCommandQueue persists management commands in Redis so queued stop
// moves and partial closes survive a bridge restart between EA polls.
type RedisCommandQueue struct {
	fifo queue.FIFO
	l    *applogger.Logger
}

func NewRedisCommandQueue(fifo queue.FIFO) *RedisCommandQueue {
	return &RedisCommandQueue{fifo: fifo}
}

// SetLogger attaches a logger for drain-side decode warnings.
func (q *RedisCommandQueue) SetLogger(l *applogger.Logger) { q.l = l }

func (q *RedisCommandQueue) Enqueue(ctx context.Context, cmd models.ManagementCommand) error {
	b, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	return q.fifo.Push(ctx, "commands:"+strings.ToLower(cmd.Broker), b)
}

func (q *RedisCommandQueue) Drain(ctx context.Context, broker string, limit int) ([]models.ManagementCommand, error) {
	raw, err := q.fifo.Pop(ctx, "commands:"+strings.ToLower(broker), limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.ManagementCommand, 0, len(raw))
	for _, b := range raw {
		var cmd models.ManagementCommand
		if err := json.Unmarshal(b, &cmd); err != nil {
			// A corrupt entry is dropped rather than wedging the drain loop.
			if q.l != nil {
				q.l.Warn("dropping undecodable command", applogger.Error(err))
			}
			continue
		}
		out = append(out, cmd)
	}
	return out, nil
}

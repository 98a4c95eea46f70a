package usecase

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"FxBridge/internal/domain/models"
	"FxBridge/internal/guards"
	"FxBridge/internal/marketdata"
	"FxBridge/pkg/logger"
)

// PlanForSignal derives the trade-management schedule from the signal's
// volatility regime. High volatility banks profit earlier and trails wider.
func PlanForSignal(sig *models.Signal) *models.ManagementPlan {
	switch sig.Risk.VolatilityRegime {
	case "high":
		return &models.ManagementPlan{
			BreakevenAtR:   0.8,
			TrailStartAtR:  1.2,
			TrailDistanceR: 1.0,
			PartialCloses: []models.PartialClose{
				{AtR: 1.0, Fraction: 0.5},
				{AtR: 2.0, Fraction: 0.25},
			},
		}
	case "low":
		return &models.ManagementPlan{
			BreakevenAtR:   1.2,
			TrailStartAtR:  2.0,
			TrailDistanceR: 0.6,
			PartialCloses: []models.PartialClose{
				{AtR: 2.0, Fraction: 0.5},
			},
		}
	default:
		return &models.ManagementPlan{
			BreakevenAtR:   1.0,
			TrailStartAtR:  1.5,
			TrailDistanceR: 0.8,
			PartialCloses: []models.PartialClose{
				{AtR: 1.5, Fraction: 0.5},
				{AtR: 2.5, Fraction: 0.25},
			},
		}
	}
}

// CommandQueue buffers management commands until the EA polls for them.
type CommandQueue interface {
	Enqueue(ctx context.Context, cmd models.ManagementCommand) error
	Drain(ctx context.Context, broker string, limit int) ([]models.ManagementCommand, error)
}

const memoryQueueCap = 500

// MemoryCommandQueue is the in-process CommandQueue, bounded per broker.
type MemoryCommandQueue struct {
	mu       sync.Mutex
	byBroker map[string][]models.ManagementCommand
}

func NewMemoryCommandQueue() *MemoryCommandQueue {
	return &MemoryCommandQueue{byBroker: make(map[string][]models.ManagementCommand)}
}

func (q *MemoryCommandQueue) Enqueue(_ context.Context, cmd models.ManagementCommand) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmds := append(q.byBroker[cmd.Broker], cmd)
	if len(cmds) > memoryQueueCap {
		cmds = cmds[len(cmds)-memoryQueueCap:]
	}
	q.byBroker[cmd.Broker] = cmds
	return nil
}

func (q *MemoryCommandQueue) Drain(_ context.Context, broker string, limit int) ([]models.ManagementCommand, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmds := q.byBroker[broker]
	if limit <= 0 || limit > len(cmds) {
		limit = len(cmds)
	}
	out := make([]models.ManagementCommand, limit)
	copy(out, cmds[:limit])
	q.byBroker[broker] = cmds[limit:]
	return out, nil
}

// PositionManager walks open positions and queues stop moves, trails,
// partial closes, and guard-driven force closes for EA pickup.
type PositionManager struct {
	store  *marketdata.Store
	guards *guards.Engine
	queue  CommandQueue
	log    *logger.Logger
	now    func() time.Time

	mu     sync.Mutex
	issued map[string]positionProgress
}

type positionProgress struct {
	breakevenDone bool
	closeIssued   bool
	rungsDone     int
	touchedAt     time.Time
}

// NewPositionManager creates the management pass over open positions.
func NewPositionManager(store *marketdata.Store, g *guards.Engine, queue CommandQueue, log *logger.Logger) *PositionManager {
	if queue == nil {
		queue = NewMemoryCommandQueue()
	}
	return &PositionManager{
		store:  store,
		guards: g,
		queue:  queue,
		log:    log,
		now:    time.Now,
		issued: make(map[string]positionProgress),
	}
}

// Queue exposes the underlying command queue for the EA drain endpoint.
func (m *PositionManager) Queue() CommandQueue { return m.queue }

// EvaluatePositionManagement inspects each open position once and queues the
// next due management action, if any. It never issues the same breakeven or
// partial-close rung twice for a ticket.
func (m *PositionManager) EvaluatePositionManagement(ctx context.Context, broker string, positions []models.Position, plan *models.ManagementPlan) ([]models.ManagementCommand, error) {
	if plan == nil {
		plan = PlanForSignal(&models.Signal{})
	}
	var queued []models.ManagementCommand
	now := m.now()

	guardReport := m.guards.ShouldEnableTrading(ctx, broker, "", nil)

	for _, pos := range positions {
		cmd, ok := m.evaluateOne(broker, pos, plan, guardReport, now)
		if !ok {
			continue
		}
		if err := m.queue.Enqueue(ctx, cmd); err != nil {
			if m.log != nil {
				m.log.Error("failed to queue management command",
					logger.String("broker", broker), logger.String("ticket", pos.Ticket), logger.Error(err))
			}
			continue
		}
		queued = append(queued, cmd)
	}
	m.pruneIssued(now)
	return queued, nil
}

func (m *PositionManager) evaluateOne(broker string, pos models.Position, plan *models.ManagementPlan, guardReport guards.Report, now time.Time) (models.ManagementCommand, bool) {
	cmd := models.ManagementCommand{
		ID:       uuid.NewString(),
		Broker:   broker,
		Symbol:   pos.Symbol,
		Ticket:   pos.Ticket,
		IssuedAt: now,
	}

	m.mu.Lock()
	prog := m.issued[pos.Ticket]
	prog.touchedAt = now
	defer func() {
		m.issued[pos.Ticket] = prog
		m.mu.Unlock()
	}()

	// guard-driven force close outranks profit management
	if !guardReport.Enabled && guardReport.BlockedBy == "dataQuality" {
		if prog.closeIssued {
			return models.ManagementCommand{}, false
		}
		prog.closeIssued = true
		cmd.Action = models.ActionClose
		cmd.Reason = "data quality guard: " + guardReport.Reason
		return cmd, true
	}

	quote := m.store.Quote(broker, pos.Symbol)
	if quote == nil || pos.StopLoss <= 0 {
		return models.ManagementCommand{}, false
	}
	riskDist := math.Abs(pos.EntryPrice - pos.StopLoss)
	if riskDist <= 0 {
		return models.ManagementCommand{}, false
	}
	price := quote.Price()
	var r float64
	if pos.Side == models.SideBuy {
		r = (price - pos.EntryPrice) / riskDist
	} else {
		r = (pos.EntryPrice - price) / riskDist
	}

	// partial-close ladder
	if prog.rungsDone < len(plan.PartialCloses) {
		rung := plan.PartialCloses[prog.rungsDone]
		if r >= rung.AtR {
			prog.rungsDone++
			cmd.Action = models.ActionPartialClose
			cmd.CloseFraction = rung.Fraction
			cmd.Reason = "partial close rung reached"
			return cmd, true
		}
	}

	// breakeven
	if !prog.breakevenDone && r >= plan.BreakevenAtR {
		prog.breakevenDone = true
		cmd.Action = models.ActionMoveStop
		cmd.StopLoss = pos.EntryPrice
		cmd.Reason = "move stop to breakeven"
		return cmd, true
	}

	// trailing stop
	if r >= plan.TrailStartAtR {
		trail := plan.TrailDistanceR * riskDist
		var newStop float64
		if pos.Side == models.SideBuy {
			newStop = price - trail
			if newStop <= pos.StopLoss {
				return models.ManagementCommand{}, false
			}
		} else {
			newStop = price + trail
			if newStop >= pos.StopLoss {
				return models.ManagementCommand{}, false
			}
		}
		cmd.Action = models.ActionTrailStop
		cmd.StopLoss = newStop
		cmd.Reason = "trail stop"
		return cmd, true
	}
	return models.ManagementCommand{}, false
}

// pruneIssued drops progress entries for tickets not seen recently.
func (m *PositionManager) pruneIssued(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ticket, prog := range m.issued {
		if now.Sub(prog.touchedAt) > time.Hour {
			delete(m.issued, ticket)
		}
	}
}

// Package scheduler turns item state into reminder service calls and tracks
// the per-item reminder lifecycle.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/benvon/smart-pantry/internal/reminder"
	"github.com/benvon/smart-pantry/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// State is where an item's reminder is in its lifecycle.
type State int

const (
	Unscheduled State = iota
	Scheduled
	Rescheduled
	Cancelled
)

func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Rescheduled:
		return "rescheduled"
	case Cancelled:
		return "cancelled"
	default:
		return "unscheduled"
	}
}

// Active reports whether a reminder is expected to be pending.
func (s State) Active() bool {
	return s == Scheduled || s == Rescheduled
}

const serviceCallTimeout = 10 * time.Second

// ErrClosed is returned once the engine has been closed.
var ErrClosed = errors.New("scheduler: engine closed")

type opKind int

const (
	opSchedule opKind = iota
	opCancel
)

type op struct {
	kind  opKind
	req   reminder.Request
	id    uuid.UUID
	flush chan struct{}
}

func (o op) itemID() uuid.UUID {
	if o.kind == opSchedule {
		return o.req.ID
	}
	return o.id
}

// Engine issues and cancels reminders. Service calls are queued in order and
// sent by a single dispatcher goroutine; callers never wait for them.
type Engine struct {
	service reminder.Service
	clock   calendar.Clock
	logger  *zap.Logger

	stateMu sync.Mutex
	states  map[uuid.UUID]State

	queueMu sync.Mutex
	pending []op
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// NewEngine starts an engine sending to service.
func NewEngine(service reminder.Service, clock calendar.Clock, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		service: service,
		clock:   clock,
		logger:  log,
		states:  make(map[uuid.UUID]State),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go e.dispatch()
	return e
}

// Recompute returns item with its notification time derived from its
// expiration date, its prior days and tod.
func (e *Engine) Recompute(item models.Item, tod calendar.TimeOfDay) models.Item {
	at := calendar.DeriveNotificationInstant(item.ExpirationDate, tod, item.PriorDays, e.clock.Now())
	item.NotificationTime = &at
	return item
}

// Issue requests a reminder for item. It does nothing and returns false when
// notifications are disabled or no notification time is set.
func (e *Engine) Issue(item models.Item) bool {
	if !item.HasReminder() {
		return false
	}

	e.enqueue(op{kind: opSchedule, req: reminder.Request{
		ID:      item.ID,
		Title:   reminder.DefaultTitle,
		Body:    reminder.BodyFor(item.Name),
		FireAt:  *item.NotificationTime,
		Repeats: false,
	}})

	e.stateMu.Lock()
	if e.states[item.ID].Active() {
		e.states[item.ID] = Rescheduled
	} else {
		e.states[item.ID] = Scheduled
	}
	e.stateMu.Unlock()
	return true
}

// Cancel removes any pending reminder for item. Safe to call repeatedly.
func (e *Engine) Cancel(item models.Item) {
	e.enqueue(op{kind: opCancel, id: item.ID})

	e.stateMu.Lock()
	if e.states[item.ID] != Unscheduled {
		e.states[item.ID] = Cancelled
	}
	e.stateMu.Unlock()
}

// Reschedule cancels the pending reminder and, if the item is enabled,
// recomputes its notification time from tod and issues a new one.
func (e *Engine) Reschedule(item models.Item, tod calendar.TimeOfDay) models.Item {
	wasActive := e.State(item.ID).Active()
	e.Cancel(item)
	if !item.IsNotificationEnabled {
		return item
	}

	item = e.Recompute(item, tod)
	e.Issue(item)
	if wasActive {
		e.setState(item.ID, Rescheduled)
	}
	return item
}

// SetEnabled switches notifications for item. Turning them off cancels;
// turning them on recomputes from tod and issues.
func (e *Engine) SetEnabled(item models.Item, enabled bool, tod calendar.TimeOfDay) models.Item {
	item.IsNotificationEnabled = enabled
	if !enabled {
		e.Cancel(item)
		return item
	}
	e.Cancel(item)
	item = e.Recompute(item, tod)
	e.Issue(item)
	return item
}

// State returns the lifecycle state for id.
func (e *Engine) State(id uuid.UUID) State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.states[id]
}

// Forget drops the state kept for a removed item.
func (e *Engine) Forget(id uuid.UUID) {
	e.stateMu.Lock()
	delete(e.states, id)
	e.stateMu.Unlock()
}

// Close stops accepting work and waits until every queued call was sent.
func (e *Engine) Close(ctx context.Context) error {
	e.queueMu.Lock()
	if e.closed {
		e.queueMu.Unlock()
		return ErrClosed
	}
	e.closed = true
	e.queueMu.Unlock()
	e.signal()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every call queued so far was sent. Used by tests and
// before lifecycle flushes.
func (e *Engine) Flush(ctx context.Context) error {
	marker := make(chan struct{})
	e.queueMu.Lock()
	if e.closed {
		e.queueMu.Unlock()
		return ErrClosed
	}
	e.pending = append(e.pending, op{flush: marker})
	e.queueMu.Unlock()
	e.signal()

	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) setState(id uuid.UUID, s State) {
	e.stateMu.Lock()
	e.states[id] = s
	e.stateMu.Unlock()
}

func (e *Engine) enqueue(o op) {
	e.queueMu.Lock()
	if e.closed {
		e.queueMu.Unlock()
		e.logger.Warn("reminder_call_after_close", zap.String("item_id", o.itemID().String()))
		return
	}
	e.pending = append(e.pending, o)
	e.queueMu.Unlock()
	e.signal()
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) dispatch() {
	defer close(e.done)
	for range e.wake {
		for {
			e.queueMu.Lock()
			batch := e.pending
			e.pending = nil
			closed := e.closed
			e.queueMu.Unlock()

			for _, o := range batch {
				e.send(o)
			}
			if len(batch) == 0 {
				if closed {
					return
				}
				break
			}
		}
	}
}

func (e *Engine) send(o op) {
	if o.flush != nil {
		close(o.flush)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), serviceCallTimeout)
	defer cancel()

	spanName := "reminder.cancel"
	if o.kind == opSchedule {
		spanName = "reminder.schedule"
	}
	ctx, span := telemetry.Tracer().Start(ctx, spanName)
	span.SetAttributes(attribute.String("item.id", o.itemID().String()))
	defer span.End()

	switch o.kind {
	case opSchedule:
		if err := e.service.Schedule(ctx, o.req); err != nil {
			span.SetStatus(codes.Error, err.Error())
			e.logger.Error("reminder_schedule_failed",
				zap.String("item_id", o.req.ID.String()),
				zap.Time("fire_at", o.req.FireAt),
				zap.Error(err),
			)
			return
		}
		e.logger.Debug("reminder_scheduled",
			zap.String("item_id", o.req.ID.String()),
			zap.Time("fire_at", o.req.FireAt),
		)
	case opCancel:
		if err := e.service.Cancel(ctx, o.id); err != nil {
			span.SetStatus(codes.Error, err.Error())
			e.logger.Error("reminder_cancel_failed",
				zap.String("item_id", o.id.String()),
				zap.Error(err),
			)
			return
		}
		e.logger.Debug("reminder_cancelled", zap.String("item_id", o.id.String()))
	}
}

package cascade

import (
	"context"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/codec"
	"github.com/benvon/smart-pantry/internal/inventory"
	"github.com/benvon/smart-pantry/internal/kv"
	"github.com/benvon/smart-pantry/internal/recipes"
	"github.com/benvon/smart-pantry/internal/reminder"
	"github.com/benvon/smart-pantry/internal/scheduler"
	"github.com/benvon/smart-pantry/internal/settings"
	"go.uber.org/zap"
)

// Open builds a coordinator whose state lives in store and whose reminders go
// to service, and loads the persisted state. Close stops its reminder engine.
func Open(ctx context.Context, store kv.Store, service reminder.Service, clock calendar.Clock, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	repo := codec.NewRepository(store, log.Named("codec"))
	c := New(Deps{
		Items:     inventory.NewStore(clock, nil),
		Settings:  settings.NewStore(ctx, repo),
		Engine:    scheduler.NewEngine(service, clock, log.Named("scheduler")),
		Favorites: recipes.NewFavorites(nil),
		Persist:   repo,
		Clock:     clock,
		Logger:    log.Named("cascade"),
	})
	c.Load(ctx)
	return c
}

// Flush waits until every reminder call issued so far has reached the service.
func (c *Coordinator) Flush(ctx context.Context) error {
	return c.engine.Flush(ctx)
}

// Close stops the reminder engine after the queued reminder calls are sent.
// Persist state with Terminate first.
func (c *Coordinator) Close(ctx context.Context) error {
	return c.engine.Close(ctx)
}

// Package entry implements the add-item form: a draft name and expiration
// that can be typed, filled in from label text or a photo, or filled in from
// a barcode, then confirmed into a new item.
package entry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/logger"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/benvon/smart-pantry/internal/services/barcode"
	"github.com/benvon/smart-pantry/internal/validation"
	"go.uber.org/zap"
)

var (
	// ErrMissingName is returned when confirming a draft without a name.
	ErrMissingName = errors.New("item name is required")
	// ErrUnavailable is returned when the service behind a request is not configured.
	ErrUnavailable = errors.New("service not configured")
)

// Completer interprets label photos and text.
type Completer interface {
	NameFromImage(ctx context.Context, image []byte, mime string) (string, error)
	NameFromText(ctx context.Context, text string) (string, error)
	ExpirationFromText(ctx context.Context, text string) (time.Time, error)
}

// ItemAdder creates items from confirmed drafts.
type ItemAdder interface {
	AddItem(ctx context.Context, name string, expirationDate *time.Time) (models.Item, error)
}

// BarcodeView is the scanning session as shown in the form.
type BarcodeView struct {
	State       barcode.State `json:"state"`
	ProductName string        `json:"product_name"`
}

// View is a snapshot of the form.
type View struct {
	Name            string      `json:"name"`
	ExpirationInput string      `json:"expiration_input"`
	LoadingName     bool        `json:"loading_name"`
	LoadingDate     bool        `json:"loading_date"`
	Barcode         BarcodeView `json:"barcode"`
}

// request tracks the in-flight completion of one kind. A new request of the
// same kind cancels the previous one.
type request struct {
	cancel  context.CancelFunc
	gen     uint64
	loading bool
}

// Draft is the add-item form state.
type Draft struct {
	mu              sync.Mutex
	name            string
	expirationInput string
	nameReq         request
	dateReq         request

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	completer Completer
	session   *barcode.Session
	adder     ItemAdder
	clock     calendar.Clock
	logger    *zap.Logger
}

// NewDraft creates an empty draft. completer and session may be nil when the
// corresponding services are not configured.
func NewDraft(adder ItemAdder, completer Completer, session *barcode.Session, clock calendar.Clock, log *zap.Logger) *Draft {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Draft{
		ctx:       ctx,
		stop:      stop,
		completer: completer,
		session:   session,
		adder:     adder,
		clock:     clock,
		logger:    log,
	}
}

// View returns a snapshot of the form.
func (d *Draft) View() View {
	d.mu.Lock()
	v := View{
		Name:            d.name,
		ExpirationInput: d.expirationInput,
		LoadingName:     d.nameReq.loading,
		LoadingDate:     d.dateReq.loading,
	}
	d.mu.Unlock()

	v.Barcode = BarcodeView{State: barcode.StateIdle, ProductName: barcode.ScanningName}
	if d.session != nil {
		v.Barcode = BarcodeView{State: d.session.State(), ProductName: d.session.ProductName()}
	}
	return v
}

// SetName sets the typed name, cut to the maximum name length.
func (d *Draft) SetName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = validation.TruncateName(name)
}

// SetExpirationInput sets the typed expiration, reformatted as yyyy-MM-dd
// while it is being typed.
func (d *Draft) SetExpirationInput(raw string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expirationInput = calendar.FormatDateInput(raw)
}

// RequestNameFromImage asks for the item name shown in a photo. The result
// arrives asynchronously; LoadingName is set until it does.
func (d *Draft) RequestNameFromImage(image []byte, mime string) error {
	if d.completer == nil {
		return ErrUnavailable
	}
	d.start(&d.nameReq, "name_from_image", func(ctx context.Context) (func(), error) {
		name, err := d.completer.NameFromImage(ctx, image, mime)
		if err != nil {
			return nil, err
		}
		return func() { d.name = validation.TruncateName(name) }, nil
	})
	return nil
}

// RequestNameFromText asks for the item name in recognized label text.
func (d *Draft) RequestNameFromText(text string) error {
	if d.completer == nil {
		return ErrUnavailable
	}
	d.start(&d.nameReq, "name_from_text", func(ctx context.Context) (func(), error) {
		name, err := d.completer.NameFromText(ctx, text)
		if err != nil {
			return nil, err
		}
		return func() { d.name = validation.TruncateName(name) }, nil
	})
	return nil
}

// RequestExpirationFromText asks for the expiration date in recognized
// label text. A text without a date yields today's date.
func (d *Draft) RequestExpirationFromText(text string) error {
	if d.completer == nil {
		return ErrUnavailable
	}
	d.start(&d.dateReq, "expiration_from_text", func(ctx context.Context) (func(), error) {
		date, err := d.completer.ExpirationFromText(ctx, text)
		if err != nil {
			return nil, err
		}
		return func() { d.expirationInput = calendar.FormatDate(date) }, nil
	})
	return nil
}

// start runs fn off the caller's goroutine. The returned apply func is run
// under the draft lock only if no newer request of the same kind was made.
func (d *Draft) start(req *request, operation string, fn func(ctx context.Context) (func(), error)) {
	d.mu.Lock()
	if req.cancel != nil {
		req.cancel()
	}
	ctx, cancel := context.WithCancel(d.ctx)
	req.cancel = cancel
	req.gen++
	req.loading = true
	gen := req.gen
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()

		apply, err := fn(ctx)

		d.mu.Lock()
		defer d.mu.Unlock()
		if req.gen != gen {
			// Superseded by a newer request
			return
		}
		req.loading = false
		req.cancel = nil
		if err != nil {
			d.logger.Warn("draft_completion_failed",
				zap.String("operation", operation),
				logger.Error(err),
			)
			return
		}
		apply()
	}()
}

// Wait blocks until every in-flight request has finished or ctx is done.
func (d *Draft) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadBarcode feeds a scanned code to the barcode session and, when the
// lookup yields a product, uses it as the draft name. A result the session
// discarded because it was re-armed or stopped during the lookup is returned
// but not applied.
func (d *Draft) ReadBarcode(ctx context.Context, code string) (string, error) {
	if d.session == nil {
		return "", ErrUnavailable
	}
	if d.session.State() == barcode.StateIdle {
		d.session.Start()
	}
	product, err := d.session.Read(ctx, code)
	if err != nil {
		return "", err
	}
	if d.session.ProductName() != product {
		return product, nil
	}
	if name := barcode.UsableName(product); name != "" {
		d.SetName(name)
	}
	return product, nil
}

// RearmBarcode discards the last scan and starts scanning again.
func (d *Draft) RearmBarcode() error {
	if d.session == nil {
		return ErrUnavailable
	}
	d.session.Rearm()
	return nil
}

// Confirm creates the item. An empty or unparseable expiration means today.
func (d *Draft) Confirm(ctx context.Context) (models.Item, error) {
	d.mu.Lock()
	name := d.name
	input := d.expirationInput
	d.mu.Unlock()

	if validation.SanitizeText(name) == "" {
		return models.Item{}, ErrMissingName
	}

	expiration := calendar.ParseExpirationInput(input, d.clock.Now())
	item, err := d.adder.AddItem(ctx, name, &expiration)
	if err != nil {
		return models.Item{}, err
	}
	d.Reset()
	return item, nil
}

// Reset clears the form and cancels in-flight requests.
func (d *Draft) Reset() {
	d.mu.Lock()
	for _, req := range []*request{&d.nameReq, &d.dateReq} {
		if req.cancel != nil {
			req.cancel()
			req.cancel = nil
		}
		req.gen++
		req.loading = false
	}
	d.name = ""
	d.expirationInput = ""
	d.mu.Unlock()

	if d.session != nil {
		d.session.Stop()
	}
}

// Close cancels in-flight requests and waits for them to return.
func (d *Draft) Close(ctx context.Context) error {
	d.stop()
	return d.Wait(ctx)
}

// Package inspector is the coordinator: it owns the configuration, the
// transaction store and the capture components, and fans captured
// transactions out to the notification and overlay collaborators.
package inspector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"http-inspector/internal/adapters/capture"
	"http-inspector/internal/adapters/notify"
	"http-inspector/internal/adapters/storage/memory"
	"http-inspector/internal/domain"
	"http-inspector/internal/infrastructure/config"
	obs "http-inspector/internal/infrastructure/observability"
	"http-inspector/internal/usecase"
)

var ErrNoPresenter = errors.New("no presenter configured")

const notifyTimeout = 10 * time.Second

type Option func(*Inspector)

func WithLogger(l *zerolog.Logger) Option { return func(i *Inspector) { i.logger = l } }

func WithMetrics(m *obs.Metrics) Option { return func(i *Inspector) { i.metrics = m } }

// WithNotifier replaces the notifier built from the configuration.
func WithNotifier(n usecase.Notifier) Option { return func(i *Inspector) { i.customNotifier = n } }

func WithPresenter(p usecase.Presenter) Option { return func(i *Inspector) { i.presenter = p } }

func WithOverlay(o usecase.Overlay) Option { return func(i *Inspector) { i.overlay = o } }

// WithPassThrough sets the transport the tap sends real requests through.
func WithPassThrough(rt http.RoundTripper) Option { return func(i *Inspector) { i.passThrough = rt } }

func WithClock(now func() time.Time) Option { return func(i *Inspector) { i.now = now } }

// Listener observes every stored transaction with the store size after it.
type Listener func(tx domain.Transaction, total int)

// Inspector is created once by the host application and passed to whatever
// wires interception and UI. Components are built lazily by Start (or by the
// first accessor that needs them) from the configuration current at that
// moment; a later Configure does not rebuild them.
type Inspector struct {
	logger         *zerolog.Logger
	metrics        *obs.Metrics
	customNotifier usecase.Notifier
	presenter      usecase.Presenter
	overlay        usecase.Overlay
	passThrough    http.RoundTripper
	now            func() time.Time

	mu        sync.Mutex
	cfg       config.Config
	built     bool
	store     *memory.Store
	service   *usecase.TransactionService
	recorder  *capture.Recorder
	tap       *capture.Transport
	observer  *capture.Observer
	cdp       *capture.CDPObserver
	notifier  usecase.Notifier
	listeners map[int]Listener
	nextID    int
	closing   bool // set by Shutdown; no notification starts after it

	inflight sync.WaitGroup
}

func New(opts ...Option) *Inspector {
	i := &Inspector{cfg: config.Default(), listeners: make(map[int]Listener)}
	for _, o := range opts {
		o(i)
	}
	if i.logger == nil {
		nop := zerolog.Nop()
		i.logger = &nop
	}
	return i
}

// Configure replaces the active configuration. An invalid configuration is
// rejected and the previous one stays active. Already built components keep
// the settings they were built with.
func (i *Inspector) Configure(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configure inspector: %w", err)
	}
	i.mu.Lock()
	i.cfg = cfg
	built := i.built
	i.mu.Unlock()
	i.logger.Info().
		Bool("notifications", cfg.ShowNotifications).
		Int("max_transactions", cfg.MaxTransactions).
		Bool("floating_button", cfg.EnableFloatingButton).
		Strs("redact_headers", cfg.RedactHeaders).
		Msg("inspector configured")
	if built {
		i.logger.Debug().Msg("components already built; store capacity and capture settings unchanged")
	}
	return nil
}

// Config returns the active configuration.
func (i *Inspector) Config() config.Config {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cfg
}

// Start builds missing components and activates interception. Calling it
// again re-activates a stopped or shut down inspector.
func (i *Inspector) Start() {
	i.mu.Lock()
	i.closing = false
	i.ensureLocked()
	rec, store, cfg := i.recorder, i.store, i.cfg
	interceptors := i.interceptorsLocked()
	i.mu.Unlock()

	rec.Activate()
	if cfg.EnableFloatingButton && i.overlay != nil {
		i.overlay.Activate()
		i.overlay.SetBadge(store.Count(), store.ErrorCount())
	}
	for _, ic := range interceptors {
		i.logger.Info().Str("variant", ic.Name()).Str("matching", ic.Describe()).Msg("interception active")
	}
	i.logger.Info().Msg("inspector started")
}

// Stop deactivates interception. Stored transactions and components are kept.
func (i *Inspector) Stop() {
	i.mu.Lock()
	rec := i.recorder
	i.mu.Unlock()
	if rec != nil {
		rec.Deactivate()
	}
	if i.overlay != nil {
		i.overlay.Deactivate()
	}
	i.logger.Info().Msg("inspector stopped")
}

// Running reports whether interception is active.
func (i *Inspector) Running() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.recorder != nil && i.recorder.Active()
}

// Show asks the presenter to open the inspector UI.
func (i *Inspector) Show() error {
	if i.presenter == nil {
		return ErrNoPresenter
	}
	return i.presenter.Show()
}

// GetAllTransactions returns the stored transactions newest first, or nothing
// before the store exists.
func (i *Inspector) GetAllTransactions() []domain.Transaction {
	i.mu.Lock()
	store := i.store
	i.mu.Unlock()
	if store == nil {
		return []domain.Transaction{}
	}
	return store.All()
}

// ClearTransactions empties the store; it is a no-op before the store exists.
func (i *Inspector) ClearTransactions() {
	i.mu.Lock()
	store := i.store
	i.mu.Unlock()
	if store == nil {
		return
	}
	store.ClearAll()
	i.metrics.Stored(0)
	if i.overlay != nil && i.Config().EnableFloatingButton {
		i.overlay.SetBadge(0, 0)
	}
	i.logger.Info().Msg("transactions cleared")
}

// Capacity is the store's transaction limit, or the configured one before the
// store exists. A Configure after the store is built does not change it.
func (i *Inspector) Capacity() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.store != nil {
		return i.store.Capacity()
	}
	return i.cfg.MaxTransactions
}

// Service exposes filtered queries over the store.
func (i *Inspector) Service() *usecase.TransactionService {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ensureLocked()
	return i.service
}

// Transport returns the transparent tap.
func (i *Inspector) Transport() *capture.Transport {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ensureLocked()
	return i.tap
}

// Client returns an http.Client routed through the tap.
func (i *Inspector) Client() *http.Client { return i.Transport().Client() }

// Observer returns the lifecycle-event interception variant.
func (i *Inspector) Observer() *capture.Observer {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ensureLocked()
	return i.observer
}

// CDPObserver returns the DevTools network-event interception variant.
func (i *Inspector) CDPObserver() *capture.CDPObserver {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ensureLocked()
	return i.cdp
}

// Interceptors lists the interception variants, built or not.
func (i *Inspector) Interceptors() []capture.Interceptor {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.interceptorsLocked()
}

// Capture records a completed exchange the application observed itself.
// startedAt may be nil, in which case the transaction has no duration.
func (i *Inspector) Capture(req domain.Request, resp *domain.Response, failure *domain.Error, startedAt *time.Time) domain.Transaction {
	i.mu.Lock()
	i.ensureLocked()
	rec := i.recorder
	i.mu.Unlock()
	return rec.Capture(req, resp, failure, startedAt)
}

// RedactedHeaders lists the header names the recorder masks, or the configured
// names before it exists.
func (i *Inspector) RedactedHeaders() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.recorder != nil {
		return i.recorder.RedactedHeaders()
	}
	return append([]string(nil), i.cfg.RedactHeaders...)
}

// Subscribe registers fn for every stored transaction and returns a function
// that removes it. Listeners run on the capturing goroutine and must not block.
func (i *Inspector) Subscribe(fn Listener) (unsubscribe func()) {
	i.mu.Lock()
	id := i.nextID
	i.nextID++
	i.listeners[id] = fn
	i.mu.Unlock()
	return func() {
		i.mu.Lock()
		delete(i.listeners, id)
		i.mu.Unlock()
	}
}

// Shutdown stops interception and waits for in-flight notifications until ctx
// is done. Transactions captured after it are still stored but not notified.
func (i *Inspector) Shutdown(ctx context.Context) error {
	i.mu.Lock()
	i.closing = true
	i.mu.Unlock()
	i.Stop()
	done := make(chan struct{})
	go func() {
		i.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *Inspector) ensureLocked() {
	if i.built {
		return
	}
	cfg := i.cfg

	i.store = memory.NewStore(cfg.MaxTransactions)
	i.store.OnEvict(func(n int) {
		i.metrics.Evicted(n)
		i.logger.Debug().Int("evicted", n).Msg("store over capacity")
	})
	i.service = usecase.NewTransactionService(i.store)

	i.recorder = capture.NewRecorder(i.onCapture, capture.Options{
		RedactHeaders: cfg.RedactHeaders,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		Logger:        i.logger,
		Metrics:       i.metrics,
		Now:           i.now,
	})
	matcher := capture.NewMatcher(cfg.AllowHosts, cfg.AllowHeader)
	base := i.passThrough
	if base == nil {
		base = capture.NewPassThrough(cfg.InsecureTLS)
	}
	i.tap = capture.NewTransport(i.recorder, base, matcher)
	i.observer = capture.NewObserver(i.recorder, matcher)
	i.cdp = capture.NewCDPObserver(i.recorder, matcher)

	if cfg.ShowNotifications {
		i.notifier = i.buildNotifier(cfg)
	}
	i.built = true
	i.logger.Debug().Int("capacity", i.store.Capacity()).Bool("notifier", i.notifier != nil).Msg("inspector components built")
}

func (i *Inspector) buildNotifier(cfg config.Config) usecase.Notifier {
	if i.customNotifier != nil {
		return i.customNotifier
	}
	n := notify.Multi{notify.NewLog(i.logger, cfg.NotificationTitle)}
	if cfg.NotifyEndpoint != "" {
		// deliveries must not go through the tap or they would be captured
		client := &http.Client{Timeout: notifyTimeout}
		n = append(n, notify.NewNTFY(client, cfg.NotifyEndpoint, cfg.NotificationTitle))
	}
	return n
}

func (i *Inspector) interceptorsLocked() []capture.Interceptor {
	if !i.built {
		return nil
	}
	return []capture.Interceptor{i.tap, i.observer, i.cdp}
}

// onCapture is the recorder sink. It never panics into the capture path.
func (i *Inspector) onCapture(tx domain.Transaction) {
	defer func() {
		if v := recover(); v != nil {
			i.metrics.CaptureError("store")
			i.logger.Error().Str("id", tx.ID).Str("panic", fmt.Sprint(v)).Msg("storing transaction failed")
		}
	}()

	i.mu.Lock()
	store, notifier, cfg := i.store, i.notifier, i.cfg
	listeners := make([]Listener, 0, len(i.listeners))
	for _, l := range i.listeners {
		listeners = append(listeners, l)
	}
	i.mu.Unlock()

	store.Store(tx)
	total := store.Count()
	i.metrics.Stored(total)
	i.logger.Debug().Str("id", tx.ID).Str("method", tx.Request.Method).Str("url", tx.Request.URL).Str("status", tx.StatusDescription()).Msg("transaction stored")

	if cfg.EnableFloatingButton && i.overlay != nil {
		i.overlay.SetBadge(total, store.ErrorCount())
	}
	for _, l := range listeners {
		i.callListener(l, tx, total)
	}
	if tx.IsTerminal() && cfg.ShowNotifications && notifier != nil {
		i.notify(notifier, tx, total)
	}
}

func (i *Inspector) callListener(l Listener, tx domain.Transaction, total int) {
	defer func() {
		if v := recover(); v != nil {
			i.metrics.CaptureError("listener")
			i.logger.Error().Str("id", tx.ID).Str("panic", fmt.Sprint(v)).Msg("transaction listener panicked")
		}
	}()
	l(tx, total)
}

// notify delivers in the background; failures are logged and counted.
// The in-flight count is raised under i.mu so it never races Shutdown's Wait.
func (i *Inspector) notify(n usecase.Notifier, tx domain.Transaction, total int) {
	i.mu.Lock()
	if i.closing {
		i.mu.Unlock()
		i.logger.Debug().Str("id", tx.ID).Msg("shutting down; notification skipped")
		return
	}
	i.inflight.Add(1)
	i.mu.Unlock()
	go func() {
		defer i.inflight.Done()
		defer func() {
			if v := recover(); v != nil {
				i.metrics.NotificationFailed()
				i.logger.Error().Str("id", tx.ID).Str("panic", fmt.Sprint(v)).Msg("notifier panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.Notify(ctx, tx, total); err != nil {
			i.metrics.NotificationFailed()
			i.logger.Warn().Err(err).Str("id", tx.ID).Msg("notification failed")
		}
	}()
}

// Package catalog is the facade consumers talk to: it turns intents into
// dispatched catalog API calls, feeds mapped results into the entity store and
// projects the store, the query controller and the operation state into a
// ViewModel.
package catalog

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"catalog-service/clients"
	"catalog-service/dispatch"
	apperrors "catalog-service/errors"
	"catalog-service/mapper"
	"catalog-service/models"
	"catalog-service/query"
	"catalog-service/state"
	"catalog-service/store"

	"go.uber.org/zap"
)

var (
	// ErrSuperseded is returned when a newer call of the same kind replaced
	// this one before its result could be applied.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrDuplicateSubmission is returned when a mutation for the same target
	// is already in flight.
	ErrDuplicateSubmission = errors.New("submission already in progress")
	ErrUnknownCombination  = errors.New("unknown variant combination")
	ErrNoSelection         = errors.New("no product selected")
	ErrEmptySubmission     = errors.New("empty submission")
)

// ErrorReporter receives failures of secondary operations that never block
// the primary view.
type ErrorReporter interface {
	Report(ctx context.Context, err *apperrors.OperationError)
}

// ChangePublisher announces confirmed mutations to other instances.
type ChangePublisher interface {
	PublishChange(ctx context.Context, ev models.ChangeEvent) error
}

const (
	DefaultCacheTimeout = 5 * time.Minute
	DefaultFeaturedSize = 8
)

type Config struct {
	PageSize     int
	CacheTimeout time.Duration
	// Origin tags published change events so an instance can skip its own.
	Origin string
}

// Engine is one consumer session's cache and sync engine. All methods are
// safe for concurrent use; intents block until their call finishes.
type Engine struct {
	api       clients.CatalogAPI
	mapper    *mapper.Mapper
	store     *store.EntityStore
	machine   *state.Machine
	query     *query.Controller
	reporter  ErrorReporter
	publisher ChangePublisher
	log       *zap.Logger
	cfg       Config
	now       func() time.Time

	featuredSwitch    dispatch.Switcher
	recommendedSwitch dispatch.Switcher
	searchSwitch      dispatch.Switcher
	detailSwitch      dispatch.Switcher
	submits           dispatch.Exhauster
	filterLoads       dispatch.Exhauster
	lookups           dispatch.Merger

	mu                    sync.RWMutex
	selectedID            string
	selectedCombinationID string
	searchQuery           string
	searchTotal           int64
	filterDefinitions     []models.FilterDefinition
	ownEvents             []string
}

// Option customises an Engine.
type Option func(*Engine)

func WithReporter(r ErrorReporter) Option {
	return func(e *Engine) { e.reporter = r }
}

func WithPublisher(p ChangePublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(api clients.CatalogAPI, m *mapper.Mapper, cfg Config, opts ...Option) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = query.DefaultPageSize
	}
	if cfg.CacheTimeout <= 0 {
		cfg.CacheTimeout = DefaultCacheTimeout
	}
	e := &Engine{
		api:    api,
		mapper: m,
		cfg:    cfg,
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.store = store.NewEntityStore(e.log)
	e.machine = state.NewMachine()
	e.query = query.NewController(cfg.PageSize, e.store, e.machine)
	e.query.UseClock(e.now)
	return e
}

// Store exposes the entity store, mainly for subscriptions.
func (e *Engine) Store() *store.EntityStore {
	return e.store
}

// Close cancels in-flight switch calls and waits for merged lookups.
func (e *Engine) Close() {
	e.query.Cancel()
	for _, s := range []*dispatch.Switcher{&e.featuredSwitch, &e.recommendedSwitch, &e.searchSwitch, &e.detailSwitch} {
		s.Cancel()
	}
	e.lookups.Wait()
}

// ClearError empties one class's error slot.
func (e *Engine) ClearError(c state.OpClass) {
	e.machine.ClearError(c)
}

// ClearErrors empties every error slot; loading flags are untouched.
func (e *Engine) ClearErrors() {
	e.machine.ClearErrors()
}

// operationError wraps a failed call for the error slot of action's class.
func (e *Engine) operationError(action state.Action, err error) *apperrors.OperationError {
	class, _ := state.ClassOf(action)
	severity := apperrors.SeverityError
	if class == state.ClassByIDs || class == state.ClassDetail {
		severity = apperrors.SeverityWarning
	}
	opErr := apperrors.NewOperationError(string(action), string(class), severity, err)
	var te *clients.TransportError
	if errors.As(err, &te) && te.StatusCode != 0 {
		opErr.WithContext("status", strconv.Itoa(te.StatusCode))
	}
	return opErr
}

func (e *Engine) logFailure(opErr *apperrors.OperationError, fields ...zap.Field) {
	fields = append(fields,
		zap.String("operation", opErr.Operation),
		zap.String("class", opErr.Class),
		zap.String("error", opErr.Message),
	)
	if opErr.Severity == apperrors.SeverityError {
		e.log.Error("Catalog operation failed", fields...)
		return
	}
	e.log.Warn("Catalog operation failed", fields...)
}

func (e *Engine) upsert(products []models.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		if p.ID != "" {
			ids = append(ids, p.ID)
		}
	}
	e.store.UpsertMany(products)
	return ids
}

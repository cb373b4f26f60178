package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"catalog-service/models"
	"catalog-service/pkg/aws"

	"go.uber.org/zap"
)

const ownEventMemory = 64

// ApplyRemoteChange brings the session in line with a mutation confirmed
// elsewhere. Deleted products are dropped; upserted products this session
// already holds are fetched again. The list is marked stale either way.
// Events this engine published itself are ignored.
func (e *Engine) ApplyRemoteChange(ctx context.Context, ev models.ChangeEvent) {
	if e.ownEvent(ev.ID) {
		return
	}
	e.query.Invalidate()

	switch ev.Kind {
	case models.ChangeDeleted:
		e.forget(ev.ProductIDs)
	case models.ChangeUpserted:
		var held []string
		for _, id := range compactIDs(ev.ProductIDs) {
			if _, ok := e.store.GetByID(id); ok {
				held = append(held, id)
			}
		}
		if len(held) == 0 {
			return
		}
		done := make(chan error, 1)
		e.lookups.Go(func() { done <- e.fetchByIDs(ctx, held) })
		if err := <-done; err != nil {
			e.log.Warn("Failed to refresh remotely changed products", zap.Error(err), zap.Strings("product_ids", held))
		}
	default:
		e.log.Warn("Ignoring change event of unknown kind", zap.String("kind", string(ev.Kind)), zap.String("event_id", ev.ID))
	}
}

func (e *Engine) rememberEvent(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ownEvents = append(e.ownEvents, id)
	if len(e.ownEvents) > ownEventMemory {
		e.ownEvents = e.ownEvents[len(e.ownEvents)-ownEventMemory:]
	}
}

func (e *Engine) ownEvent(id string) bool {
	if id == "" {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, own := range e.ownEvents {
		if own == id {
			return true
		}
	}
	return false
}

// SNSPublisher is the transport used by SNSChangePublisher.
type SNSPublisher interface {
	Publish(ctx context.Context, topicArn string, message []byte) error
}

// SNSChangePublisher sends change events to an SNS topic as JSON.
type SNSChangePublisher struct {
	sns      SNSPublisher
	topicArn string
}

func NewSNSChangePublisher(sns SNSPublisher, topicArn string) *SNSChangePublisher {
	return &SNSChangePublisher{sns: sns, topicArn: topicArn}
}

func (p *SNSChangePublisher) PublishChange(ctx context.Context, ev models.ChangeEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	return p.sns.Publish(ctx, p.topicArn, b)
}

// Publisher returns a ChangePublisher that applies events to every local
// session and then forwards them to next, which may be nil.
func (r *Registry) Publisher(next ChangePublisher) ChangePublisher {
	return &fanoutPublisher{registry: r, next: next}
}

type fanoutPublisher struct {
	registry *Registry
	next     ChangePublisher
}

func (f *fanoutPublisher) PublishChange(ctx context.Context, ev models.ChangeEvent) error {
	go f.registry.Broadcast(context.WithoutCancel(ctx), ev)
	if f.next == nil {
		return nil
	}
	return f.next.PublishChange(ctx, ev)
}

// CacheInvalidator drops cached payloads of changed products.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, ids []string)
}

// SyncConsumer applies change events delivered through SQS, either raw or
// wrapped in an SNS notification envelope.
type SyncConsumer struct {
	registry *Registry
	origin   string
	cache    CacheInvalidator
	metrics  MetricsRecorder
	log      *zap.Logger
}

// MetricsRecorder counts processed queue messages. *aws.MetricsClient
// satisfies it.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

func NewSyncConsumer(registry *Registry, origin string, cache CacheInvalidator, log *zap.Logger) *SyncConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncConsumer{registry: registry, origin: origin, cache: cache, log: log}
}

// WithMetrics makes c count every handled message by outcome.
func (c *SyncConsumer) WithMetrics(m MetricsRecorder) *SyncConsumer {
	c.metrics = m
	return c
}

func (c *SyncConsumer) count(ctx context.Context, outcome string) {
	if c.metrics == nil {
		return
	}
	if err := c.metrics.RecordCount(context.WithoutCancel(ctx), aws.MetricSQSMessages, map[string]string{"Outcome": outcome}); err != nil {
		c.log.Debug("Failed to record queue metric", zap.Error(err))
	}
}

type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// Handle processes one message body. Malformed messages are logged and
// acknowledged so they are not redelivered forever.
func (c *SyncConsumer) Handle(ctx context.Context, body string) error {
	ev, err := DecodeChangeEvent(body)
	if err != nil {
		c.log.Warn("Dropping malformed change event", zap.Error(err))
		c.count(ctx, "malformed")
		return nil
	}
	if ev.Origin != "" && ev.Origin == c.origin {
		c.count(ctx, "own")
		return nil
	}
	c.log.Info("Applying remote catalog change",
		zap.String("event_id", ev.ID),
		zap.String("kind", string(ev.Kind)),
		zap.Strings("product_ids", ev.ProductIDs),
	)
	if c.cache != nil {
		c.cache.Invalidate(ctx, ev.ProductIDs)
	}
	c.registry.Broadcast(ctx, ev)
	c.count(ctx, "applied")
	return nil
}

// DecodeChangeEvent parses a raw or SNS-enveloped change event.
func DecodeChangeEvent(body string) (models.ChangeEvent, error) {
	var env snsEnvelope
	if err := json.Unmarshal([]byte(body), &env); err == nil && env.Type == "Notification" && env.Message != "" {
		body = env.Message
	}
	var ev models.ChangeEvent
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	if ev.Kind == "" || len(ev.ProductIDs) == 0 {
		return models.ChangeEvent{}, fmt.Errorf("change event %q has no kind or products", strings.TrimSpace(ev.ID))
	}
	return ev, nil
}

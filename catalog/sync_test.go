package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"catalog-service/models"
	"catalog-service/pkg/aws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSNS struct {
	topic   string
	message []byte
	err     error
}

func (f *fakeSNS) Publish(_ context.Context, topicArn string, message []byte) error {
	f.topic, f.message = topicArn, message
	return f.err
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids [][]string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids)
}

func TestSNSChangePublisherEncodesEvent(t *testing.T) {
	sns := &fakeSNS{}
	p := NewSNSChangePublisher(sns, "arn:aws:sns:eu-west-1:123:catalog-changes")
	ev := models.ChangeEvent{ID: "ev-1", Kind: models.ChangeUpserted, ProductIDs: []string{"p1"}, Origin: "instance-a", OccurredAt: testNow}

	require.NoError(t, p.PublishChange(context.Background(), ev))

	assert.Equal(t, "arn:aws:sns:eu-west-1:123:catalog-changes", sns.topic)
	var decoded models.ChangeEvent
	require.NoError(t, json.Unmarshal(sns.message, &decoded))
	assert.Equal(t, ev, decoded)

	sns.err = errors.New("throttled")
	assert.Error(t, p.PublishChange(context.Background(), ev))
}

func TestDecodeChangeEvent(t *testing.T) {
	raw := `{"id":"ev-1","kind":"deleted","productIds":["p1"],"origin":"instance-b"}`
	envelope, err := json.Marshal(map[string]string{"Type": "Notification", "Message": raw})
	require.NoError(t, err)

	for _, body := range []string{raw, string(envelope)} {
		ev, err := DecodeChangeEvent(body)
		require.NoError(t, err)
		assert.Equal(t, "ev-1", ev.ID)
		assert.Equal(t, models.ChangeDeleted, ev.Kind)
		assert.Equal(t, []string{"p1"}, ev.ProductIDs)
	}

	_, err = DecodeChangeEvent("not json")
	assert.Error(t, err)
	_, err = DecodeChangeEvent(`{"id":"ev-2","kind":"deleted"}`)
	assert.Error(t, err)
}

func TestSyncConsumerAppliesRemoteDeletes(t *testing.T) {
	r := newTestRegistry(t, &fakeAPI{})
	cache := &recordingInvalidator{}
	c := NewSyncConsumer(r, "instance-a", cache, zap.NewNop())
	ctx := context.Background()

	e, _, _ := r.Get("")
	_, err := e.LoadProductsByIDs(ctx, []string{"p1", "p2"})
	require.NoError(t, err)

	body := `{"id":"ev-1","kind":"deleted","productIds":["p1"],"origin":"instance-b"}`
	require.NoError(t, c.Handle(ctx, body))

	_, ok := e.Store().GetByID("p1")
	assert.False(t, ok)
	assert.Equal(t, [][]string{{"p1"}}, cache.ids)
}

type outcomeMetrics struct {
	names    []string
	outcomes []string
}

func (m *outcomeMetrics) RecordCount(_ context.Context, name string, dims map[string]string) error {
	m.names = append(m.names, name)
	m.outcomes = append(m.outcomes, dims["Outcome"])
	return nil
}

func TestSyncConsumerCountsMessagesByOutcome(t *testing.T) {
	r := newTestRegistry(t, &fakeAPI{})
	metrics := &outcomeMetrics{}
	c := NewSyncConsumer(r, "instance-a", nil, zap.NewNop()).WithMetrics(metrics)
	ctx := context.Background()

	require.NoError(t, c.Handle(ctx, `{"id":"ev-1","kind":"deleted","productIds":["p1"],"origin":"instance-b"}`))
	require.NoError(t, c.Handle(ctx, `{"id":"ev-2","kind":"deleted","productIds":["p1"],"origin":"instance-a"}`))
	require.NoError(t, c.Handle(ctx, "garbage"))

	assert.Equal(t, []string{"applied", "own", "malformed"}, metrics.outcomes)
	assert.Equal(t, []string{aws.MetricSQSMessages, aws.MetricSQSMessages, aws.MetricSQSMessages}, metrics.names)
}

func TestSyncConsumerSkipsOwnEvents(t *testing.T) {
	r := newTestRegistry(t, &fakeAPI{})
	cache := &recordingInvalidator{}
	c := NewSyncConsumer(r, "instance-a", cache, zap.NewNop())
	ctx := context.Background()

	e, _, _ := r.Get("")
	_, err := e.LoadProductsByIDs(ctx, []string{"p1"})
	require.NoError(t, err)

	require.NoError(t, c.Handle(ctx, `{"id":"ev-1","kind":"deleted","productIds":["p1"],"origin":"instance-a"}`))
	require.NoError(t, c.Handle(ctx, "garbage"))

	_, ok := e.Store().GetByID("p1")
	assert.True(t, ok)
	assert.Empty(t, cache.ids)
}

func TestRemoteUpsertRefetchesHeldProducts(t *testing.T) {
	api := &fakeAPI{}
	e, _ := newTestEngine(t, api)
	ctx := context.Background()

	_, err := e.LoadProductsByIDs(ctx, []string{"p1"})
	require.NoError(t, err)

	e.ApplyRemoteChange(ctx, models.ChangeEvent{ID: "ev-9", Kind: models.ChangeUpserted, ProductIDs: []string{"p1", "p9"}})

	require.Len(t, api.byIDsArgs, 2)
	assert.Equal(t, []string{"p1"}, api.byIDsArgs[1])
	_, ok := e.Store().GetByID("p9")
	assert.False(t, ok)
}

func TestEngineIgnoresItsOwnEvents(t *testing.T) {
	pub := &recordingPublisher{}
	api := &fakeAPI{}
	e, _ := newTestEngine(t, api, WithPublisher(pub))
	ctx := context.Background()

	_, err := e.UpdateProduct(ctx, "p1", models.ProductInput{Name: "Renamed"})
	require.NoError(t, err)
	require.Len(t, pub.published(), 1)

	e.ApplyRemoteChange(ctx, pub.published()[0])
	assert.Zero(t, api.count("by-ids"))
}

func TestFanoutPublisherUpdatesOtherLocalSessions(t *testing.T) {
	api := &fakeAPI{}
	next := &recordingPublisher{}
	r := newTestRegistry(t, api)
	pub := r.Publisher(next)
	ctx := context.Background()

	other, _, _ := r.Get("")
	_, err := other.LoadProductsByIDs(ctx, []string{"p1"})
	require.NoError(t, err)

	require.NoError(t, pub.PublishChange(ctx, models.ChangeEvent{ID: "ev-3", Kind: models.ChangeDeleted, ProductIDs: []string{"p1"}}))
	assert.Len(t, next.published(), 1)

	assert.Eventually(t, func() bool {
		_, ok := other.Store().GetByID("p1")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

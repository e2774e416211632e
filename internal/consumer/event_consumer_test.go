package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/config"
	"github.com/PADAS/er-server-sub001/internal/evaluator"
	"github.com/PADAS/er-server-sub001/internal/models"
	"github.com/PADAS/er-server-sub001/internal/redis"
)

type fakeEventLoader struct {
	events map[string]*models.Event
}

func (f *fakeEventLoader) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	event, ok := f.events[id]
	if !ok {
		return nil, errors.New("event not found")
	}
	return event, nil
}

type fakeEventTypeLoader struct {
	eventTypes map[string]*models.EventType
}

func (f *fakeEventTypeLoader) GetByValue(ctx context.Context, value string) (*models.EventType, error) {
	et, ok := f.eventTypes[value]
	if !ok {
		return nil, errors.New("event type not found")
	}
	return et, nil
}

type fakeRuleLoader struct {
	rules []models.AlertRule
}

func (f *fakeRuleLoader) ListActiveForEventType(ctx context.Context, eventType string) ([]models.AlertRule, error) {
	return f.rules, nil
}

type fakeEvaluator struct {
	mu        sync.Mutex
	calls     int
	lastEvent *models.Event
	matches   []evaluator.Match
	errors    []evaluator.RuleError
}

func (f *fakeEvaluator) EvaluateEvent(ctx context.Context, event *models.Event, eventType *models.EventType, rules []models.AlertRule) ([]evaluator.Match, []evaluator.RuleError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastEvent = event
	return f.matches, f.errors
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched [][]evaluator.Match
}

func (f *fakeDispatcher) DispatchMatches(ctx context.Context, event *models.Event, matches []evaluator.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, matches)
	return nil
}

type consumerFixture struct {
	redisClient *goredis.Client
	cfg         *config.Config
	evaluator   *fakeEvaluator
	dispatcher  *fakeDispatcher
	consumer    *EventConsumer
}

func setupConsumer(t *testing.T, eval *fakeEvaluator) *consumerFixture {
	mr := miniredis.RunT(t)
	redisClient := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.Alert.EventStream = "er:events"
	cfg.Alert.ConsumerGroup = "er-alerts"
	cfg.Alert.ConsumerName = "er-alerts-test"
	cfg.Alert.BatchSize = 10

	events := &fakeEventLoader{events: map[string]*models.Event{
		"ev-1": {
			ID:        "ev-1",
			Title:     "Test Event No. 1",
			EventType: "carcass_rep",
			State:     models.StateNew,
		},
	}}
	eventTypes := &fakeEventTypeLoader{eventTypes: map[string]*models.EventType{
		"carcass_rep": {ID: "et-1", Value: "carcass_rep", Schema: `{"schema": {"properties": {}}}`},
	}}
	rules := &fakeRuleLoader{rules: []models.AlertRule{{ID: "rule-1"}}}
	dispatcher := &fakeDispatcher{}

	logger := zap.NewNop()
	c := NewEventConsumer(cfg, redisClient, events, eventTypes, rules, eval, dispatcher, logger)

	return &consumerFixture{
		redisClient: redisClient,
		cfg:         cfg,
		evaluator:   eval,
		dispatcher:  dispatcher,
		consumer:    c,
	}
}

func (f *consumerFixture) publishChange(t *testing.T, ctx context.Context, change EventChangeMessage) {
	t.Helper()
	payload, err := json.Marshal(change)
	require.NoError(t, err)
	_, err = redis.PublishToStream(ctx, f.redisClient, f.cfg.Alert.EventStream, map[string]interface{}{
		"data": string(payload),
	})
	require.NoError(t, err)
}

// ============================================
// 消费测试
// ============================================

func TestConsumeOnce_EvaluatesAndDispatches(t *testing.T) {
	ctx := context.Background()
	eval := &fakeEvaluator{matches: []evaluator.Match{
		{RuleID: "rule-1", EventID: "ev-1"},
	}}
	f := setupConsumer(t, eval)

	require.NoError(t, redis.CreateConsumerGroup(ctx, f.redisClient, f.cfg.Alert.EventStream, f.cfg.Alert.ConsumerGroup))
	f.publishChange(t, ctx, EventChangeMessage{EventID: "ev-1", Action: "created"})

	require.NoError(t, f.consumer.consumeOnce(ctx))

	assert.Equal(t, 1, eval.calls)
	assert.Equal(t, "ev-1", eval.lastEvent.ID)

	require.Len(t, f.dispatcher.dispatched, 1)
	assert.Equal(t, "rule-1", f.dispatcher.dispatched[0][0].RuleID)

	// 处理成功后消息被确认
	pending, err := f.redisClient.XPending(ctx, f.cfg.Alert.EventStream, f.cfg.Alert.ConsumerGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestConsumeOnce_NoMatchesSkipsDispatch(t *testing.T) {
	ctx := context.Background()
	eval := &fakeEvaluator{}
	f := setupConsumer(t, eval)

	require.NoError(t, redis.CreateConsumerGroup(ctx, f.redisClient, f.cfg.Alert.EventStream, f.cfg.Alert.ConsumerGroup))
	f.publishChange(t, ctx, EventChangeMessage{EventID: "ev-1", Action: "updated"})

	require.NoError(t, f.consumer.consumeOnce(ctx))

	assert.Equal(t, 1, eval.calls)
	assert.Empty(t, f.dispatcher.dispatched)
}

func TestConsumeOnce_RuleErrorsDoNotBlockDispatch(t *testing.T) {
	ctx := context.Background()
	eval := &fakeEvaluator{
		matches: []evaluator.Match{{RuleID: "rule-1", EventID: "ev-1"}},
		errors:  []evaluator.RuleError{{RuleID: "rule-2", Err: errors.New("unknown rule variable")}},
	}
	f := setupConsumer(t, eval)

	require.NoError(t, redis.CreateConsumerGroup(ctx, f.redisClient, f.cfg.Alert.EventStream, f.cfg.Alert.ConsumerGroup))
	f.publishChange(t, ctx, EventChangeMessage{EventID: "ev-1", Action: "updated"})

	require.NoError(t, f.consumer.consumeOnce(ctx))

	require.Len(t, f.dispatcher.dispatched, 1)
}

func TestConsumeOnce_MalformedMessageLeftPending(t *testing.T) {
	ctx := context.Background()
	eval := &fakeEvaluator{}
	f := setupConsumer(t, eval)

	require.NoError(t, redis.CreateConsumerGroup(ctx, f.redisClient, f.cfg.Alert.EventStream, f.cfg.Alert.ConsumerGroup))
	_, err := redis.PublishToStream(ctx, f.redisClient, f.cfg.Alert.EventStream, map[string]interface{}{
		"data": "not json",
	})
	require.NoError(t, err)

	// 解析失败不中断消费循环
	require.NoError(t, f.consumer.consumeOnce(ctx))

	assert.Zero(t, eval.calls)
	assert.Empty(t, f.dispatcher.dispatched)

	// 失败消息不确认，留待重试/排障
	pending, err := f.redisClient.XPending(ctx, f.cfg.Alert.EventStream, f.cfg.Alert.ConsumerGroup).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
}

func TestConsumeOnce_UnknownEventLeftPending(t *testing.T) {
	ctx := context.Background()
	eval := &fakeEvaluator{}
	f := setupConsumer(t, eval)

	require.NoError(t, redis.CreateConsumerGroup(ctx, f.redisClient, f.cfg.Alert.EventStream, f.cfg.Alert.ConsumerGroup))
	f.publishChange(t, ctx, EventChangeMessage{EventID: "no-such-event", Action: "created"})

	require.NoError(t, f.consumer.consumeOnce(ctx))

	assert.Zero(t, eval.calls)

	pending, err := f.redisClient.XPending(ctx, f.cfg.Alert.EventStream, f.cfg.Alert.ConsumerGroup).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
}

func TestParseMessage(t *testing.T) {
	msg := redis.StreamMessage{
		ID:     "1-1",
		Values: map[string]interface{}{"data": `{"event_id": "ev-1", "action": "created"}`},
	}
	change, err := parseMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "ev-1", change.EventID)
	assert.Equal(t, "created", change.Action)

	_, err = parseMessage(redis.StreamMessage{ID: "1-2", Values: map[string]interface{}{}})
	require.Error(t, err)

	_, err = parseMessage(redis.StreamMessage{ID: "1-3", Values: map[string]interface{}{"data": `{"action": "created"}`}})
	require.Error(t, err)
}

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"coupon-service/internal/config"
	"coupon-service/internal/logger"
	"coupon-service/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

func encodeEvent(t *testing.T, ev models.Event) *sarama.ConsumerMessage {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &sarama.ConsumerMessage{Value: data, Topic: "coupons"}
}

func TestConsumer_ProcessMessage_WithHandler(t *testing.T) {
	c := &Consumer{log: testLogger(), handlers: make(map[models.EventType]EventHandler)}

	var got *models.CouponEventData
	c.RegisterHandler(models.EventTypeCouponActivated, func(ctx context.Context, event *models.Event) error {
		data, err := DecodeCouponEvent(event)
		got = data
		return err
	})

	msg := encodeEvent(t, models.Event{
		ID:   uuid.New(),
		Type: models.EventTypeCouponActivated,
		Data: models.CouponEventData{CouponID: 4, MerchantID: 2, Code: "X", Status: models.CouponStatusActive},
	})
	if err := c.processMessage(msg); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got == nil || got.MerchantID != 2 || got.CouponID != 4 {
		t.Fatalf("handler not called with decoded payload: %+v", got)
	}
	if c.HandlerCount() != 1 {
		t.Fatalf("handler count expected 1")
	}
}

func TestConsumer_ProcessMessage_NoHandler(t *testing.T) {
	c := &Consumer{log: testLogger(), handlers: make(map[models.EventType]EventHandler), ctx: context.Background()}

	msg := encodeEvent(t, models.Event{ID: uuid.New(), Type: models.EventTypeCouponDeactivated})
	if err := c.processMessage(msg); err != nil {
		t.Fatalf("expected no error for missing handler, got %v", err)
	}
}

func TestConsumer_ProcessMessage_HandlerError(t *testing.T) {
	c := &Consumer{log: testLogger(), handlers: make(map[models.EventType]EventHandler), ctx: context.Background()}
	c.RegisterHandler(models.EventTypeCouponCreated, func(ctx context.Context, event *models.Event) error {
		return fmt.Errorf("fail")
	})

	msg := encodeEvent(t, models.Event{ID: uuid.New(), Type: models.EventTypeCouponCreated})
	if err := c.processMessage(msg); err == nil {
		t.Fatalf("expected handler error")
	}
}

func TestConsumer_ProcessMessage_InvalidJSON(t *testing.T) {
	c := &Consumer{log: testLogger(), handlers: make(map[models.EventType]EventHandler), ctx: context.Background()}

	msg := &sarama.ConsumerMessage{Value: []byte("not json"), Topic: "coupons"}
	if err := c.processMessage(msg); err == nil {
		t.Fatalf("expected unmarshal error")
	}
}

type mockConsumerGroup struct {
	consumeCount int32
}

func (m *mockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	atomic.AddInt32(&m.consumeCount, 1)
	_ = handler.Setup(nil)
	select {
	case <-ctx.Done():
	case <-time.After(time.Millisecond):
	}
	return ctx.Err()
}
func (m *mockConsumerGroup) Errors() <-chan error      { ch := make(chan error); close(ch); return ch }
func (m *mockConsumerGroup) Close() error              { return nil }
func (m *mockConsumerGroup) Pause(map[string][]int32)  {}
func (m *mockConsumerGroup) Resume(map[string][]int32) {}
func (m *mockConsumerGroup) PauseAll()                 {}
func (m *mockConsumerGroup) ResumeAll()                {}

func (m *mockConsumerGroup) calls() int32 { return atomic.LoadInt32(&m.consumeCount) }

type mockSession struct {
	ctx    context.Context
	marked int
}

func (m *mockSession) Claims() map[string][]int32                                               { return nil }
func (m *mockSession) MemberID() string                                                         { return "" }
func (m *mockSession) GenerationID() int32                                                      { return 0 }
func (m *mockSession) MarkOffset(topic string, partition int32, offset int64, metadata string)  {}
func (m *mockSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {}
func (m *mockSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string)                 { m.marked++ }
func (m *mockSession) Commit()                                                                  {}
func (m *mockSession) Context() context.Context                                                 { return m.ctx }

type mockClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (m *mockClaim) Topic() string              { return "coupons" }
func (m *mockClaim) Partition() int32           { return 0 }
func (m *mockClaim) InitialOffset() int64       { return 0 }
func (m *mockClaim) HighWaterMarkOffset() int64 { return 0 }
func (m *mockClaim) Messages() <-chan *sarama.ConsumerMessage {
	return m.msgs
}

func TestConsumer_StartStop(t *testing.T) {
	mockGroup := &mockConsumerGroup{}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Consumer{
		consumer: mockGroup,
		log:      testLogger(),
		handlers: map[models.EventType]EventHandler{},
		topics:   []string{"coupons"},
		ctx:      ctx,
		cancel:   cancel,
	}

	if err := c.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if mockGroup.calls() == 0 {
		t.Fatalf("expected Consume called")
	}
}

func TestConsumer_StartWithoutGroup(t *testing.T) {
	c := &Consumer{log: testLogger()}
	if err := c.Start(); err == nil {
		t.Fatalf("expected error without consumer group")
	}
}

func TestNewTestConsumer(t *testing.T) {
	mockGroup := &mockConsumerGroup{}
	c := NewTestConsumer(mockGroup, testLogger())
	if c.consumer != mockGroup {
		t.Fatalf("consumer group not set")
	}
	if err := c.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if mockGroup.calls() == 0 {
		t.Fatalf("expected Consume called at least once")
	}
}

func TestConsumer_Handler(t *testing.T) {
	c := &Consumer{handlers: map[models.EventType]EventHandler{}}
	h := func(ctx context.Context, event *models.Event) error { return nil }
	c.RegisterHandler("custom", h)
	if c.Handler("custom") == nil {
		t.Fatalf("expected handler returned")
	}
	if c.Handler("other") != nil {
		t.Fatalf("expected nil for unknown event type")
	}
}

func TestConsumer_ConsumeClaim(t *testing.T) {
	c := &Consumer{log: testLogger(), handlers: map[models.EventType]EventHandler{}, ctx: context.Background()}
	calls := 0
	c.RegisterHandler(models.EventTypeCouponCreated, func(ctx context.Context, event *models.Event) error {
		calls++
		return nil
	})

	msgs := make(chan *sarama.ConsumerMessage, 2)
	msgs <- encodeEvent(t, models.Event{ID: uuid.New(), Type: models.EventTypeCouponCreated})
	msgs <- &sarama.ConsumerMessage{Value: []byte("{"), Topic: "coupons"}
	close(msgs)

	session := &mockSession{ctx: context.Background()}
	if err := c.ConsumeClaim(session, &mockClaim{msgs: msgs}); err != nil {
		t.Fatalf("consume claim failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected handler called once, got %d", calls)
	}
	if session.marked != 2 {
		t.Fatalf("expected both messages marked, got %d", session.marked)
	}
}

func TestNewConsumer_Error(t *testing.T) {
	cfg := &config.KafkaConfig{Brokers: []string{"localhost:0"}, GroupID: "g", Topics: config.Topics{Coupons: "coupons"}}
	if _, err := NewConsumer(cfg, testLogger()); err == nil {
		t.Fatalf("expected error creating consumer")
	}
}

func TestConsumer_Cleanup(t *testing.T) {
	c := &Consumer{}
	if err := c.Cleanup(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := c.Setup(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestDecodeCouponEvent_BadPayload(t *testing.T) {
	ev := &models.Event{Type: models.EventTypeCouponCreated, Data: "not an object"}
	if _, err := DecodeCouponEvent(ev); err == nil {
		t.Fatalf("expected decode error")
	}
}

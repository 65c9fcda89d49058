package eventing

import (
	"context"
	"errors"
	"testing"
	"time"

	"payoutflow/internal/eventing/eventbus"
)

type drawRecorded struct {
	AccountID    string    `json:"account_id"`
	SettlementID string    `json:"settlement_id"`
	AmountCents  int64     `json:"amount_cents"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type fakeOutbox struct {
	records []OutboxRecord
	status  map[string]string
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{status: make(map[string]string)}
}

func (f *fakeOutbox) Insert(_ context.Context, env Envelope) (string, error) {
	id := env.EventID
	f.records = append(f.records, OutboxRecord{ID: id, Envelope: env})
	f.status[id] = "pending"
	return id, nil
}

func (f *fakeOutbox) ListPending(_ context.Context, limit int) ([]OutboxRecord, error) {
	var pending []OutboxRecord
	for _, record := range f.records {
		if f.status[record.ID] != "pending" {
			continue
		}
		pending = append(pending, record)
		if len(pending) >= limit {
			break
		}
	}
	return pending, nil
}

func (f *fakeOutbox) MarkSent(_ context.Context, id string) error {
	f.status[id] = "sent"
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id string) error {
	f.status[id] = "failed"
	return nil
}

type fakeDLQ struct{ failures []Envelope }

func (f *fakeDLQ) RecordFailure(_ context.Context, env Envelope, _ error) error {
	f.failures = append(f.failures, env)
	return nil
}

type fakeProcessed struct{ seen map[string]bool }

func (f *fakeProcessed) HasProcessed(_ context.Context, eventID, consumerName string) (bool, error) {
	return f.seen[eventID+"|"+consumerName], nil
}

func (f *fakeProcessed) MarkProcessed(_ context.Context, eventID, consumerName string) error {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.seen[eventID+"|"+consumerName] = true
	return nil
}

func TestPublisher_OutboxDelivery(t *testing.T) {
	ctx := context.Background()
	outbox := newFakeOutbox()
	registry := NewRegistry()
	registry.Register(drawRecorded{})
	bus := eventbus.NewInMemoryBus()
	dlq := &fakeDLQ{}
	dispatcher := NewDispatcher(bus, outbox, registry, dlq)
	publisher := NewPublisher(outbox, dispatcher, "acct-default", bus)

	var received []drawRecorded
	publisher.Subscribe(eventbus.EventTypeOf[drawRecorded](), func(ctx context.Context, event any) error {
		recorded, ok := event.(drawRecorded)
		if !ok {
			return errors.New("unexpected payload type")
		}
		env, ok := EnvelopeFromContext(ctx)
		if !ok || env.AccountID != "acct-1" {
			return errors.New("envelope missing from handler context")
		}
		received = append(received, recorded)
		return nil
	})

	event := drawRecorded{
		AccountID:    "acct-1",
		SettlementID: "stl-1",
		AmountCents:  50000,
		OccurredAt:   time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC),
	}
	if err := publisher.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(received) != 1 {
		t.Fatalf("handler invocation mismatch: %d", len(received))
	}
	if received[0].AmountCents != 50000 || received[0].SettlementID != "stl-1" {
		t.Fatalf("payload mismatch: %+v", received[0])
	}
	if len(outbox.records) != 1 {
		t.Fatalf("outbox record count mismatch: %d", len(outbox.records))
	}
	record := outbox.records[0]
	if outbox.status[record.ID] != "sent" {
		t.Fatalf("record not marked sent: %s", outbox.status[record.ID])
	}
	// AccountID lifts from the payload, not the publisher default.
	if record.Envelope.AccountID != "acct-1" || record.Envelope.SettlementID != "stl-1" {
		t.Fatalf("envelope metadata mismatch: %+v", record.Envelope)
	}
	if record.Envelope.EventType != eventbus.EventTypeOf[drawRecorded]() {
		t.Fatalf("event type mismatch: %s", record.Envelope.EventType)
	}
	if len(dlq.failures) != 0 {
		t.Fatalf("unexpected dlq entries: %d", len(dlq.failures))
	}
}

func TestDispatcher_UnknownTypeGoesToDLQ(t *testing.T) {
	ctx := context.Background()
	outbox := newFakeOutbox()
	registry := NewRegistry() // drawRecorded intentionally unregistered
	bus := eventbus.NewInMemoryBus()
	dlq := &fakeDLQ{}
	dispatcher := NewDispatcher(bus, outbox, registry, dlq)
	publisher := NewPublisher(outbox, dispatcher, "", bus)

	if err := publisher.Publish(ctx, drawRecorded{AccountID: "acct-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	record := outbox.records[0]
	if outbox.status[record.ID] != "failed" {
		t.Fatalf("record not marked failed: %s", outbox.status[record.ID])
	}
	if len(dlq.failures) != 1 {
		t.Fatalf("dlq entry missing: %d", len(dlq.failures))
	}
}

func TestWrapHandler_Idempotent(t *testing.T) {
	ctx := WithEnvelope(context.Background(), Envelope{EventID: "evt-1"})
	store := &fakeProcessed{seen: make(map[string]bool)}

	var calls int
	handler := WrapHandler("consumer-a", func(context.Context, any) error {
		calls++
		return nil
	}, store)

	for i := 0; i < 3; i++ {
		if err := handler(ctx, drawRecorded{}); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("handler must run once per event id, ran %d times", calls)
	}
}

package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	got []kafka.Message
	err error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.got = append(f.got, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "gzip")
	fixed := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	if err := p.Publish(context.Background(), "maco.signals", []byte("AAPL"), map[string]int{"added": 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.got) != 1 {
		t.Fatalf("messages=%d", len(w.got))
	}
	m := w.got[0]
	if m.Topic != "maco.signals" || string(m.Key) != "AAPL" || string(m.Value) != `{"added":2}` || !m.Time.Equal(fixed) {
		t.Fatalf("unexpected message %+v", m)
	}
}

func TestPublishBatchPassesRawBytes(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "gzip")
	err := p.PublishBatch(context.Background(), "t", []Message{{Value: []byte("a")}, {Value: "b"}})
	if err != nil {
		t.Fatalf("publish batch: %v", err)
	}
	if string(w.got[0].Value) != "a" || string(w.got[1].Value) != "b" {
		t.Fatalf("unexpected values")
	}
	if err := p.PublishBatch(context.Background(), "t", nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&fakeWriter{err: boom}, "gzip")
	if err := p.Publish(context.Background(), "t", nil, "x"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}

func TestParseCompression(t *testing.T) {
	if c, err := parseCompression("zstd"); err != nil || c != kafka.Zstd {
		t.Fatalf("zstd: %v %v", c, err)
	}
	if c, err := parseCompression(""); err != nil || c != kafka.Gzip {
		t.Fatalf("default: %v %v", c, err)
	}
	if _, err := parseCompression("brotli"); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}

func TestNewProducerValidates(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("brotli")); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}

package transmit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/irclimate/internal/ircode"
)

type published struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{topic, string(payload), qos, retained})
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	ok      int
	failed  int
	breaker string
}

func (r *fakeRecorder) ObserveTransmission(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed++
		return
	}
	r.ok++
}

func (r *fakeRecorder) SetBreakerState(_ string, state string) {
	r.mu.Lock()
	r.breaker = state
	r.mu.Unlock()
}

func newTestTransmitter(t *testing.T, pub Publisher, opts Options) (*Transmitter, *[]time.Duration) {
	t.Helper()
	if opts.Topic == "" {
		opts.Topic = "ir/living"
	}
	tr, err := New(pub, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	var slept []time.Duration
	tr.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return tr, &slept
}

func TestTransmit_RawPublishesVerbatimAndSettles(t *testing.T) {
	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	tr, slept := newTestTransmitter(t, pub, Options{
		DeviceID:    "living",
		QoS:         1,
		SettleDelay: 750 * time.Millisecond,
		Recorder:    rec,
	})

	if err := tr.Transmit(context.Background(), "JgBQAAAB"); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}

	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	got := pub.msgs[0]
	if got.topic != "ir/living" || got.payload != "JgBQAAAB" || got.qos != 1 || got.retained {
		t.Errorf("published %+v", got)
	}
	if len(*slept) != 1 || (*slept)[0] != 750*time.Millisecond {
		t.Errorf("settle sleeps = %v, want [750ms]", *slept)
	}
	if rec.ok != 1 || rec.failed != 0 {
		t.Errorf("recorder ok=%d failed=%d", rec.ok, rec.failed)
	}
	if rec.breaker != "closed" {
		t.Errorf("breaker state = %q, want closed", rec.breaker)
	}
}

func TestTransmit_PublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker gone")}
	tr, slept := newTestTransmitter(t, pub, Options{SettleDelay: time.Second})

	err := tr.Transmit(context.Background(), "X")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Transmit() error = %v, want ErrTransport", err)
	}
	if len(*slept) != 0 {
		t.Errorf("settle delay ran after failed publish: %v", *slept)
	}
}

func TestTransmit_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("timeout")}
	rec := &fakeRecorder{}
	tr, _ := newTestTransmitter(t, pub, Options{
		Recorder: rec,
		Breaker: BreakerSettings{
			MaxConsecutiveFailures: 2,
			OpenTimeout:            time.Hour,
		},
	})

	for i := 0; i < 2; i++ {
		_ = tr.Transmit(context.Background(), "X")
	}
	if tr.BreakerState() != "open" {
		t.Fatalf("BreakerState() = %q, want open", tr.BreakerState())
	}
	if rec.breaker != "open" {
		t.Errorf("recorded breaker state = %q, want open", rec.breaker)
	}

	pub.err = nil
	err := tr.Transmit(context.Background(), "X")
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Transmit() with open breaker error = %v, want ErrTransport", err)
	}
	if len(pub.msgs) != 0 {
		t.Errorf("open breaker let %d publishes through", len(pub.msgs))
	}
}

func TestTransmit_EnvelopeEncoding(t *testing.T) {
	pub := &fakePublisher{}
	tr, _ := newTestTransmitter(t, pub, Options{Encoder: EnvelopeEncoder{}})

	if err := tr.Transmit(context.Background(), "B64CODE"); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal([]byte(pub.msgs[0].payload), &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got[EnvelopeKey] != "B64CODE" {
		t.Errorf("envelope = %v", got)
	}
}

func TestEnvelopeEncoder_EmbedsJSONObjects(t *testing.T) {
	frame, err := EnvelopeEncoder{}.Encode(ircode.Payload(`{"Protocol":"NEC","Data":"0x20DF"}`))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var got map[string]map[string]string
	if err := json.Unmarshal(frame, &got); err != nil {
		t.Fatalf("frame %s: %v", frame, err)
	}
	if got[EnvelopeKey]["Protocol"] != "NEC" {
		t.Errorf("embedded object = %v", got)
	}
}

func TestEncoderFor(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "raw", false},
		{"raw", "raw", false},
		{"Envelope", "envelope", false},
		{"base64", "", true},
	}
	for _, tt := range tests {
		enc, err := EncoderFor(tt.name)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownEncoding) {
				t.Errorf("EncoderFor(%q) error = %v, want ErrUnknownEncoding", tt.name, err)
			}
			continue
		}
		if err != nil || enc.Name() != tt.want {
			t.Errorf("EncoderFor(%q) = %v, %v; want %s", tt.name, enc, err, tt.want)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, Options{Topic: "t"}); err == nil {
		t.Error("New(nil) expected error")
	}
	if _, err := New(&fakePublisher{}, Options{}); err == nil {
		t.Error("New() without topic expected error")
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext() = %v, want context.Canceled", err)
	}
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleepContext() = %v, want nil", err)
	}
}

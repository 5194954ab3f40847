package influxdb

import (
	"errors"
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/nerrad567/irclimate/internal/infrastructure/config"
)

func TestFlushInterval(t *testing.T) {
	tests := []struct {
		seconds int
		want    time.Duration
	}{
		{0, defaultFlushInterval},
		{-5, defaultFlushInterval},
		{2, 2 * time.Second},
	}
	for _, tt := range tests {
		if got := flushInterval(config.InfluxDBConfig{FlushInterval: tt.seconds}); got != tt.want {
			t.Errorf("flushInterval(%d) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

func TestWithDefaultTag(t *testing.T) {
	opts := influxdb2.DefaultOptions()
	WithDefaultTag("bridge_id", "irclimate-01")(opts)
	WithDefaultTag("site", "")(opts)

	tags := opts.WriteOptions().DefaultTags()
	if tags["bridge_id"] != "irclimate-01" {
		t.Errorf("bridge_id tag = %q", tags["bridge_id"])
	}
	if _, ok := tags["site"]; ok {
		t.Error("empty tag value should be skipped")
	}
}

func TestRecordWriteError(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &Client{now: func() time.Time { return now }, connected: true}

	var got error
	c.SetOnError(func(err error) { got = err })

	writeErr := errors.New("bucket not found")
	c.recordWriteError(writeErr)

	if !errors.Is(got, writeErr) {
		t.Errorf("callback got %v, want %v", got, writeErr)
	}
	if !c.lastErrAt.Equal(now) || !errors.Is(c.lastWriteErr, writeErr) {
		t.Errorf("last error = %v at %v", c.lastWriteErr, c.lastErrAt)
	}
}

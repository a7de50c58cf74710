package otel

import (
	"context"
	"testing"
)

func TestInitWithoutExporters(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing service name to fail")
	}
	shutdown, err := Init(context.Background(), Config{ServiceName: "leased"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,broken,=x, tenant=lease ")
	if len(headers) != 2 || headers["api-key"] != "abc" || headers["tenant"] != "lease" {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestSamplerRatio(t *testing.T) {
	for _, ratio := range []float64{0, -1, 1, 2} {
		if got := sampler(ratio).Description(); got != "AlwaysOnSampler" {
			t.Fatalf("ratio %v: got %s", ratio, got)
		}
	}
	if got := sampler(0.25).Description(); got == "AlwaysOnSampler" {
		t.Fatalf("ratio 0.25 should not keep every span")
	}
}

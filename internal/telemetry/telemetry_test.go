package telemetry

import (
	"context"
	"testing"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "vidproxy", Endpoint: "  "})
	if err != nil {
		t.Fatalf("Init() unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() unexpected error: %v", err)
	}
}

func TestInit_WithEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{
		ServiceName: "vidproxy",
		Endpoint:    "http://127.0.0.1:4318",
		SampleRate:  1,
	})
	if err != nil {
		t.Fatalf("Init() unexpected error: %v", err)
	}
	// Nothing was recorded, so shutdown has nothing to export.
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() unexpected error: %v", err)
	}
}

func TestSampleRate(t *testing.T) {
	tests := map[float64]float64{
		0:    0,
		0.5:  0.5,
		1:    1,
		-0.1: defaultSampleRate,
		1.5:  defaultSampleRate,
	}
	for in, want := range tests {
		if got := sampleRate(in); got != want {
			t.Errorf("sampleRate(%v) = %v, want %v", in, got, want)
		}
	}
}

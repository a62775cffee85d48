package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/ignatzorin/proposal-studio/internal/config"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OTelConfig{Enabled: true, ServiceName: "test"})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("ошибка завершения: %v", err)
	}
}

func TestSetup_NoopWhenDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OTelConfig{
		Enabled:     false,
		Endpoint:    "http://localhost:4318",
		ServiceName: "test",
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("пустое завершение не должно падать: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Немаршрутизируемый адрес, экспорт не происходит.
	shutdown, err := Setup(context.Background(), config.OTelConfig{
		Enabled:     true,
		Endpoint:    "http://192.0.2.1:4318",
		ServiceName: "test",
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("ошибка завершения: %v", err)
	}
}

func TestStartSpan_WithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test")
	if ctx == nil {
		t.Fatalf("контекст не должен быть nil")
	}
	EndSpan(span, errors.New("boom"))
}

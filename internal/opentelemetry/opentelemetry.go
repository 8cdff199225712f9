package opentelemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/pictor-io/pictor/internal/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.25.0"
)

// DefaultMeter is the meter used for all of the project's metrics.
var DefaultMeter = otel.Meter("")

func Init(ctx context.Context) (metric.Meter, func(), error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("pictor"),
			semconv.ServiceVersion(version.Version),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OpenTelemetry resource: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(meterProvider)

	DefaultMeter = meterProvider.Meter("io.pictor")

	deinit := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = meterProvider.Shutdown(ctx)
	}

	return DefaultMeter, deinit, nil
}

// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package telemetry

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/logger"
	"github.com/guestmigrate/guest-migration-tools/toolkit/tools/internal/osinfo"
	autoexport "go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	serviceName = "guestmigrator"

	otlpEndpointEnvVar = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

var tracerProvider *sdktrace.TracerProvider

// InitTelemetry installs a global tracer provider when an OTLP endpoint is configured.
// Without one, the default no-op provider stays in place and spans cost nothing.
func InitTelemetry(disableTelemetry bool, toolVersion string) error {
	if disableTelemetry {
		logger.Log.Debugf("Telemetry collection disabled")
		return nil
	} else if os.Getenv(otlpEndpointEnvVar) == "" {
		logger.Log.Debugf("No OTLP endpoint set, telemetry will not be collected")
		return nil
	}

	exporter, err := autoexport.NewSpanExporter(context.Background())
	if err != nil {
		return fmt.Errorf("failed to create OTLP exporter:\n%w", err)
	}

	distro, version := osinfo.GetDistroAndVersion()

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(toolVersion),
			attribute.String("host.architecture", runtime.GOARCH),
			attribute.String("host.os", distro),
			attribute.String("host.os.version", version),
		),
	)
	if err != nil {
		logger.Log.Debugf("Telemetry resource schema conflict, using defaults: %v", err)
		res = resource.Default()
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	return nil
}

func ShutdownTelemetry(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}

	err := tracerProvider.ForceFlush(ctx)
	if err != nil {
		logger.Log.Warnf("Failed to flush telemetry spans: %v", err)
	}

	err = tracerProvider.Shutdown(ctx)
	tracerProvider = nil
	return err
}

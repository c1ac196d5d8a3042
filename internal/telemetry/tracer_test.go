package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

func TestSchemaURL_MatchesSDKDefault(t *testing.T) {
	assert.Equal(t, resource.Default().SchemaURL(), semconv.SchemaURL,
		"resource.Merge rejects conflicting schema URLs")
}

func TestInitTracer_ExportsOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracer(&buf, nil)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "frigate.GetEvents")
	span.End()
	shutdown(context.Background())

	assert.Contains(t, buf.String(), "frigate.GetEvents")
	assert.Contains(t, buf.String(), ServiceName)
}

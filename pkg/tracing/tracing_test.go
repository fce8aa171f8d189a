package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init("allocator-test", "dev", ExporterStdout, &buf)
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "allocation.run")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "allocation.run")

	_, err = Init("allocator-test", "dev", ExporterNone, nil)
	require.NoError(t, err)
}

func TestInitRejectsUnknownExporter(t *testing.T) {
	_, err := Init("allocator-test", "dev", "jaeger", nil)
	require.Error(t, err)
}

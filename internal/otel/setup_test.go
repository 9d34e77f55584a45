package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestNewResource(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment=test")

	res, err := newResource(context.Background())
	require.NoError(t, err)

	set := res.Set()
	name, ok := set.Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, ServiceName, name.AsString())

	env, ok := set.Value(attribute.Key("deployment.environment"))
	require.True(t, ok)
	assert.Equal(t, "test", env.AsString())
}

func TestSetupOTelSDK(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := SetupOTelSDK(context.Background(), Options{Writer: &out})
	require.NoError(t, err)

	_, span := otel.Tracer("setup-test").Start(context.Background(), "publish-check")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), "publish-check", "spans go to the configured writer")

	// shutdown functions run once
	require.NoError(t, shutdown(context.Background()))
}

package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WithoutDSNIsNoop(t *testing.T) {
	shutdown, err := Init(Config{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestStartSpan_TagsAndNesting(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "IngestService.IngestVideo", SpanAttributes{
		VideoID:   "Chương 4_conv1",
		Operation: "ingest",
	})
	defer root.End()

	assert.Equal(t, "Chương 4_conv1", root.inner.Tags["video_id"])
	assert.NotContains(t, root.inner.Tags, "session_id")
	assert.Equal(t, "ingest", root.inner.Data["operation"])

	_, child := StartSpan(ctx, "Retriever.Retrieve", SpanAttributes{TaskType: "qa"})
	defer child.End()

	assert.Equal(t, root.inner.SpanID, child.inner.ParentSpanID)
	assert.Equal(t, "qa", child.inner.Tags["task_type"])
}

func TestSpan_SetErrorTagsDomainCode(t *testing.T) {
	_, span := StartSpan(context.Background(), "generation.run", SpanAttributes{})
	defer span.End()

	span.SetError(domain.NewGenerationFailure(domain.StateStreaming, errors.New("upstream closed")))

	assert.Equal(t, sentry.SpanStatusInternalError, span.inner.Status)
	assert.Equal(t, domain.ErrCodeGenerationFailure, span.inner.Tags["error.code"])
}

func TestSpan_NilSafe(t *testing.T) {
	var span Span
	span.End()
	span.SetError(errors.New("ignored"))
}

func TestSampler(t *testing.T) {
	sample := sampler(0.25)

	assert.Equal(t, 0.25, sample(sentry.SamplingContext{Span: &sentry.Span{Name: "POST /ask"}}))
	assert.Zero(t, sample(sentry.SamplingContext{Span: &sentry.Span{Name: "GET /health"}}))

	child := &sentry.Span{Name: "Retriever.Retrieve", ParentSpanID: sentry.SpanID{1}, Sampled: sentry.SampledTrue}
	assert.Equal(t, 1.0, sample(sentry.SamplingContext{Span: child}))
	child.Sampled = sentry.SampledFalse
	assert.Zero(t, sample(sentry.SamplingContext{Span: child}))
}

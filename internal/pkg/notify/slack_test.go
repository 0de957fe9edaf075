package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewave/cruisesync/app/models"
)

func sampleBatch(status string) *models.SyncBatch {
	now := time.Now()
	return &models.SyncBatch{
		ID:               1,
		UUID:             "3f1c9a6e-0000-0000-0000-000000000001",
		LineID:           7,
		Status:           status,
		Attempted:        120,
		Succeeded:        115,
		FileNotFound:     3,
		ConnectionErrors: 1,
		ParseErrors:      1,
		PriceChanges:     840,
		StartedAt:        now.Add(-5 * time.Minute),
		FinishedAt:       &now,
		DurationMS:       5 * 60 * 1000,
	}
}

func TestSlackReporter_PostsBlockKitMessage(t *testing.T) {
	var got slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	NewSlackReporter(srv.URL).ReportBatch(context.Background(), sampleBatch(models.BatchStatusCompletedWithIssues))

	require.NotEmpty(t, got.Blocks)
	assert.Equal(t, "header", got.Blocks[0].Type)
	assert.Contains(t, got.Text, "completed_with_issues")
	assert.Contains(t, got.Text, "line 7")

	// Counter fields present in the section block.
	require.GreaterOrEqual(t, len(got.Blocks), 3)
	section := got.Blocks[1]
	assert.Equal(t, "section", section.Type)
	assert.Len(t, section.Fields, 8)

	// Context block carries the batch UUID.
	ctxBlock := got.Blocks[2]
	assert.Equal(t, "context", ctxBlock.Type)
	require.Len(t, ctxBlock.Elements, 1)
	assert.Contains(t, ctxBlock.Elements[0].Text, "3f1c9a6e")
}

func TestSlackReporter_FailedBatchIncludesError(t *testing.T) {
	batch := sampleBatch(models.BatchStatusFailed)
	batch.ErrorMsg = "deadline exceeded after 40 of 120 sailings"

	msg := buildMessage(batch)
	last := msg.Blocks[len(msg.Blocks)-1]
	require.NotNil(t, last.Text)
	assert.Contains(t, last.Text.Text, "deadline exceeded")
}

func TestSlackReporter_DeliveryFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	// Must not panic or propagate anything.
	NewSlackReporter(srv.URL).ReportBatch(context.Background(), sampleBatch(models.BatchStatusCompleted))
}

func TestNoopReporter(t *testing.T) {
	NoopReporter{}.ReportBatch(context.Background(), sampleBatch(models.BatchStatusCompleted))
}

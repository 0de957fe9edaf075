// Package notify delivers end-of-batch summaries to the operations channel.
// Delivery is best-effort: a failed notification is logged and never affects
// batch status.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/tidewave/cruisesync/app/models"
	"github.com/tidewave/cruisesync/internal/pkg/env"
)

// Reporter receives a finished batch summary.
type Reporter interface {
	ReportBatch(ctx context.Context, batch *models.SyncBatch)
}

// NewReporterFromEnv returns a Slack reporter when SLACK_WEBHOOK_URL is set,
// otherwise a no-op.
func NewReporterFromEnv() Reporter {
	url := env.GetEnv("SLACK_WEBHOOK_URL", "")
	if url == "" {
		log.Info("[Notify] SLACK_WEBHOOK_URL not set, batch reports disabled")
		return NoopReporter{}
	}
	return NewSlackReporter(url)
}

// NoopReporter drops every report.
type NoopReporter struct{}

func (NoopReporter) ReportBatch(context.Context, *models.SyncBatch) {}

// SlackReporter posts batch summaries to an incoming webhook as Block Kit
// messages.
type SlackReporter struct {
	url    string
	client *http.Client
}

func NewSlackReporter(url string) *SlackReporter {
	return &SlackReporter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ReportBatch posts the summary. Errors are logged and swallowed.
func (r *SlackReporter) ReportBatch(ctx context.Context, batch *models.SyncBatch) {
	msg := buildMessage(batch)
	body, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("[Notify] Failed to encode batch report %s: %v", batch.UUID, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		log.Errorf("[Notify] Failed to build batch report request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		log.Errorf("[Notify] Failed to deliver batch report %s: %v", batch.UUID, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Errorf("[Notify] Slack rejected batch report %s: HTTP %d", batch.UUID, resp.StatusCode)
		return
	}
	log.Infof("[Notify] Delivered batch report %s", batch.UUID)
}

func buildMessage(batch *models.SyncBatch) slackMessage {
	icon := ":white_check_mark:"
	switch batch.Status {
	case models.BatchStatusCompletedWithIssues:
		icon = ":warning:"
	case models.BatchStatusFailed:
		icon = ":x:"
	}

	headline := fmt.Sprintf("%s Pricing sync %s for line %d", icon, batch.Status, batch.LineID)
	duration := time.Duration(batch.DurationMS) * time.Millisecond

	fields := []slackText{
		{Type: "mrkdwn", Text: fmt.Sprintf("*Attempted:*\n%d", batch.Attempted)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Succeeded:*\n%d", batch.Succeeded)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Not found:*\n%d", batch.FileNotFound)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Connection errors:*\n%d", batch.ConnectionErrors)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Parse errors:*\n%d", batch.ParseErrors)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Constraint errors:*\n%d", batch.ConstraintErrors)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Price changes:*\n%d", batch.PriceChanges)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Duration:*\n%s", duration.Round(time.Second))},
	}

	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: headline}},
		{Type: "section", Fields: fields},
		// Context block carries the batch UUID for correlation with the API.
		{Type: "context", Elements: []slackText{
			{Type: "mrkdwn", Text: fmt.Sprintf("Batch `%s`", batch.UUID)},
		}},
	}
	if batch.ErrorMsg != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Error:* %s", batch.ErrorMsg)},
		})
	}

	return slackMessage{Text: headline, Blocks: blocks}
}

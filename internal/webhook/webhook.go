package webhook

import (
	"context"
	"time"
)

// SchemaVersion is bumped whenever PingWebhookPayload changes shape.
const SchemaVersion = 1

// PingWebhookPayload mirrors a delivered escalation ping for external
// consumers such as dashboards or notification relays.
type PingWebhookPayload struct {
	SchemaVersion int       `json:"schema_version"`
	Guild         int64     `json:"guild"`
	Member        int64     `json:"member"`
	Slot          int       `json:"slot"`
	Message       string    `json:"message"`
	When          string    `json:"when"`
	Status        string    `json:"status"`
	DueAt         time.Time `json:"due_at"`
	PingedAt      time.Time `json:"pinged_at"`
}

type Sender interface {
	SendPing(ctx context.Context, payload PingWebhookPayload) error
}

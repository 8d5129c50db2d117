package ingest

import (
	"time"

	"wabot/pkg/webclient"
)

// ItemOutcome is what happened to one unread conversation in a cycle.
type ItemOutcome string

const (
	ItemSkipped     ItemOutcome = "skipped"
	ItemDuplicate   ItemOutcome = "duplicate"
	ItemReplied     ItemOutcome = "replied"
	ItemUndelivered ItemOutcome = "undelivered"
	ItemFailed      ItemOutcome = "failed"
)

// Item is the per-conversation result of a cycle.
type Item struct {
	Conversation string            `json:"conversation"`
	Outcome      ItemOutcome       `json:"outcome"`
	Message      webclient.Message `json:"message"`
	Reply        string            `json:"reply,omitempty"`
	Category     string            `json:"category,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Err          error             `json:"-"`
}

// Report summarizes one cycle.
type Report struct {
	CycleID    string              `json:"cycle_id"`
	State      webclient.AuthState `json:"-"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Unread     int                 `json:"unread"`
	Items      []Item              `json:"items,omitempty"`
}

// NewMessages is the batch of messages not seen before this cycle.
func (r Report) NewMessages() []webclient.Message {
	var out []webclient.Message
	for _, item := range r.Items {
		switch item.Outcome {
		case ItemReplied, ItemUndelivered, ItemFailed:
			if item.Message.Body != "" {
				out = append(out, item.Message)
			}
		}
	}
	return out
}

// Count returns how many items ended with outcome.
func (r Report) Count(outcome ItemOutcome) int {
	n := 0
	for _, item := range r.Items {
		if item.Outcome == outcome {
			n++
		}
	}
	return n
}

package model

import (
	"encoding/json"
	"time"
)

const (
	JobTypeRequestCreated = "request_created"
	JobTypePlainMessage   = "plain_message"
)

// NotificationJob is what travels through the notification queue.
type NotificationJob struct {
	ID        string          `json:"id"`
	JobType   string          `json:"job_type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Delivered []string        `json:"delivered,omitempty"` // Sinks that already accepted the message
	CreatedAt time.Time       `json:"created_at"`
}

// Payloads for the different job types (stored in NotificationJob.Payload)
type RequestCreatedPayload struct {
	RequestID string `json:"request_id"` // Internal ExpenseRequest.ID
}

type PlainMessagePayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
	Private bool     `json:"private,omitempty"`
}

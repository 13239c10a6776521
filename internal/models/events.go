package models

import "time"

// Event types emitted by the pipeline.
const (
	EventDocumentCreated      = "document.created"
	EventDocumentReviewNeeded = "document.review_needed"
	EventDocumentApproved     = "document.approved"
	EventTemplateUpdated      = "template.updated"
)

// Event is a notification the pipeline wants delivered. Pipelines return events; they never send them.
type Event struct {
	Type       string         `json:"event_type"`
	DocumentID string         `json:"document_id"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEvent stamps an event with the current time and makes sure the document id is in the payload.
func NewEvent(eventType, documentID string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	if documentID != "" {
		payload["document_id"] = documentID
	}
	return Event{
		Type:       eventType,
		DocumentID: documentID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

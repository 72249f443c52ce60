package models

// StoredResponse is a completed HTTP response kept for idempotent replay.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

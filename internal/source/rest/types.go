package rest

import "github.com/nhle/marketbell/internal/model"

// Envelope is the uniform response wrapper used by every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (e *Envelope) envelope() *Envelope { return e }

// enveloped is implemented by every response type through Envelope.
type enveloped interface {
	envelope() *Envelope
}

// ListResponse is the response from GET /notifications.
type ListResponse struct {
	Envelope
	Data []model.Notification `json:"data"`
}

// CountResponse is the response from GET /notifications/unread-count.
type CountResponse struct {
	Envelope
	Count int `json:"count"`
}

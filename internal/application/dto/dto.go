package dto

import "github.com/Builder-Lawyers/stack-deployer/internal/domain/consts"

// RawEvent is the inbound envelope handed to the intake. Body carries the
// payment provider's event JSON as received.
type RawEvent struct {
	Body string `json:"body"`
}

type MessageBody struct {
	Message string `json:"message"`
}

type WebhookResponse struct {
	StatusCode int         `json:"statusCode"`
	Body       MessageBody `json:"body"`
}

// WorkItem is one queued deployment request as delivered by the work queue.
type WorkItem struct {
	MessageID     string
	Body          string
	ReceiptHandle string
	ReceiveCount  int
}

type ClientStatusResponse struct {
	ID          string              `json:"id"`
	Email       string              `json:"email"`
	Name        string              `json:"name"`
	Status      consts.ClientStatus `json:"status"`
	StackName   string              `json:"stackName"`
	StackStatus string              `json:"stackStatus,omitempty"`
	Outputs     map[string]string   `json:"outputs,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/dto"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/errs"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/events"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/interfaces"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/entity"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/metrics"
)

const (
	MsgConfirmed       = "Payment confirmed, the infrastructure will be deployed soon"
	MsgNotConfirmed    = "Payment not confirmed, the infrastructure will not be deployed"
	MsgAlreadyDeployed = "Client infrastructure is already deployed"
	MsgFailed          = "An error occurred processing the payment confirmation"
)

// Intake turns payment confirmations into stored clients and queued
// deployment requests.
type Intake struct {
	store   interfaces.ClientStore
	queue   interfaces.WorkQueue
	groupID string
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewIntake(store interfaces.ClientStore, queue interfaces.WorkQueue, groupID string, m *metrics.Metrics) *Intake {
	return &Intake{
		store:   store,
		queue:   queue,
		groupID: groupID,
		metrics: m,
		now:     time.Now,
	}
}

// Handle never returns an error: every outcome is expressed as a response.
// The client is always written before its deployment request is enqueued and
// a failed write stops before the queue is touched.
func (c *Intake) Handle(ctx context.Context, event dto.RawEvent) dto.WebhookResponse {
	payment, err := events.ParsePaymentConfirmed([]byte(event.Body))
	if err != nil {
		slog.Info("Payment not confirmed", "reason", err)
		c.metrics.ObserveWebhook(metrics.OutcomeNotConfirmed)
		return respond(http.StatusNotFound, MsgNotConfirmed)
	}

	client := entity.NewPendingClient(payment.CustomerID, payment.CustomerName, payment.CustomerEmail, c.now())

	err = c.store.Put(ctx, client)
	if errors.Is(err, errs.ErrClientAlreadyDeployed) {
		slog.Info("Client is already deploying or deployed, skipping deployment", "clientID", client.ID, "event", payment.EventID)
		c.metrics.ObserveWebhook(metrics.OutcomeDuplicate)
		return respond(http.StatusOK, MsgAlreadyDeployed)
	}
	if err != nil {
		slog.Error("error saving client", "clientID", client.ID, "err", err)
		c.metrics.ObserveWebhook(metrics.OutcomeError)
		return respond(http.StatusInternalServerError, MsgFailed)
	}

	body, err := json.Marshal(client)
	if err != nil {
		slog.Error("error marshalling client", "clientID", client.ID, "err", err)
		c.metrics.ObserveWebhook(metrics.OutcomeError)
		return respond(http.StatusInternalServerError, MsgFailed)
	}

	messageID, err := c.queue.Enqueue(ctx, c.groupID, string(body))
	if err != nil {
		slog.Error("error enqueueing deployment request", "clientID", client.ID, "err", err)
		c.metrics.ObserveWebhook(metrics.OutcomeError)
		return respond(http.StatusInternalServerError, MsgFailed)
	}

	slog.Info("Client is pending deployment", "clientID", client.ID, "messageID", messageID)
	c.metrics.ObserveWebhook(metrics.OutcomeConfirmed)
	return respond(http.StatusOK, MsgConfirmed)
}

func respond(status int, message string) dto.WebhookResponse {
	return dto.WebhookResponse{
		StatusCode: status,
		Body:       dto.MessageBody{Message: message},
	}
}

package processors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/dto"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/errs"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/interfaces"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/consts"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/entity"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/metrics"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/orchestration"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/template"
)

type DeployClient struct {
	orchestrator    interfaces.Orchestrator
	store           interfaces.ClientStore
	queue           interfaces.WorkQueue
	template        *template.Template
	maxReceiveCount int
	metrics         *metrics.Metrics
}

func NewDeployClient(
	orchestrator interfaces.Orchestrator, store interfaces.ClientStore, queue interfaces.WorkQueue,
	tmpl *template.Template, maxReceiveCount int, m *metrics.Metrics,
) *DeployClient {
	return &DeployClient{
		orchestrator,
		store,
		queue,
		tmpl,
		maxReceiveCount,
		m,
	}
}

// Handle processes one deployment request:
// decode the client snapshot
// create the client's stack
// mark the client DEPLOYING
// acknowledge the message
// Any failure returns before the message is acknowledged so the queue
// redelivers it; on the last permitted delivery the client is marked FAILED
// and the message goes to the dead-letter queue.
func (c *DeployClient) Handle(ctx context.Context, item dto.WorkItem) error {
	start := time.Now()

	var client entity.Client
	if err := json.Unmarshal([]byte(item.Body), &client); err != nil {
		c.metrics.ObserveDeployment(metrics.OutcomePoison, time.Since(start))
		return errs.PoisonMessageError{MessageID: item.MessageID, Err: err}
	}
	if client.ID == "" || client.Email == "" {
		c.metrics.ObserveDeployment(metrics.OutcomePoison, time.Since(start))
		return errs.PoisonMessageError{MessageID: item.MessageID, Err: fmt.Errorf("client id and email are required")}
	}

	req := c.StackRequest(client)
	stackID, err := c.orchestrator.CreateStack(ctx, req)
	if err != nil {
		return c.fail(ctx, client, item, start, fmt.Errorf("error deploying stack %s, %w", req.StackName, err))
	}
	slog.Info("Client is being deployed", "clientID", client.ID, "stack", req.StackName, "stackID", stackID)

	err = c.store.UpdateStatus(ctx, client.ID, client.Email, consts.ClientStatusDeploying)
	if errors.Is(err, errs.ErrInvalidTransition) {
		// the client already moved past DEPLOYING, this request is stale
		slog.Warn("skipping status update of stale request", "clientID", client.ID, "err", err)
	} else if err != nil {
		return c.fail(ctx, client, item, start, fmt.Errorf("error updating client status, %w", err))
	} else {
		slog.Info("Client status updated", "clientID", client.ID, "status", consts.ClientStatusDeploying)
	}

	if err = c.queue.Delete(ctx, item.ReceiptHandle); err != nil {
		c.metrics.ObserveDeployment(metrics.OutcomeRetry, time.Since(start))
		return errs.RetryableError{Err: fmt.Errorf("error acknowledging message %s, %w", item.MessageID, err)}
	}
	slog.Info("Message deleted", "messageID", item.MessageID)

	c.metrics.ObserveDeployment(metrics.OutcomeDeploying, time.Since(start))
	return nil
}

// StackRequest derives the stack request for client from the template.
func (c *DeployClient) StackRequest(client entity.Client) orchestration.StackRequest {
	name := orchestration.StackName(client.ID)
	params := map[string]string{}
	if c.template.HasParameter(orchestration.ParamStackName) {
		params[orchestration.ParamStackName] = name
	}
	if c.template.HasParameter(orchestration.ParamClientID) {
		params[orchestration.ParamClientID] = client.ID
	}

	return orchestration.StackRequest{
		StackName:    name,
		TemplateBody: c.template.Body,
		TemplateURL:  c.template.URL,
		Parameters:   params,
		Capabilities: orchestration.DefaultCapabilities(),
	}
}

func (c *DeployClient) fail(ctx context.Context, client entity.Client, item dto.WorkItem, start time.Time, cause error) error {
	if item.ReceiveCount < c.maxReceiveCount {
		c.metrics.ObserveDeployment(metrics.OutcomeRetry, time.Since(start))
		return errs.RetryableError{Err: cause}
	}

	c.metrics.ObserveDeployment(metrics.OutcomeFailed, time.Since(start))
	slog.Error("deployment attempts exhausted, request goes to the dead-letter queue",
		"clientID", client.ID, "messageID", item.MessageID, "receiveCount", item.ReceiveCount, "err", cause)
	if err := c.store.UpdateStatus(ctx, client.ID, client.Email, consts.ClientStatusFailed); err != nil {
		return errors.Join(cause, fmt.Errorf("error marking client failed, %w", err))
	}
	return cause
}

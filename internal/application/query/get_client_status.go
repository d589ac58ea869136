package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/dto"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/errs"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/interfaces"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/consts"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/orchestration"
)

type GetClientStatus struct {
	store        interfaces.ClientStore
	orchestrator interfaces.Orchestrator
}

func NewGetClientStatus(store interfaces.ClientStore, orchestrator interfaces.Orchestrator) *GetClientStatus {
	return &GetClientStatus{store: store, orchestrator: orchestrator}
}

// Query returns the client's status. While the client is DEPLOYING the stack
// is inspected and a finished stack moves the client to DEPLOYED or FAILED.
func (q *GetClientStatus) Query(ctx context.Context, id, email string) (*dto.ClientStatusResponse, error) {
	client, err := q.store.Get(ctx, id, email)
	if err != nil {
		return nil, err
	}

	resp := &dto.ClientStatusResponse{
		ID:        client.ID,
		Email:     client.Email,
		Name:      client.Name,
		Status:    client.Status,
		StackName: orchestration.StackName(client.ID),
	}
	if client.Status == consts.ClientStatusPending {
		return resp, nil
	}

	stack, err := q.orchestrator.DescribeStack(ctx, resp.StackName)
	if errors.Is(err, errs.ErrStackNotFound) {
		slog.Warn("stack of client not found", "clientID", id, "stack", resp.StackName)
		return resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting stack status, %w", err)
	}
	resp.StackStatus = string(stack.Status)
	resp.Outputs = stack.Outputs

	if client.Status != consts.ClientStatusDeploying {
		return resp, nil
	}

	var next consts.ClientStatus
	switch orchestration.Phase(stack.Status) {
	case consts.StackStatusComplete:
		next = consts.ClientStatusDeployed
	case consts.StackStatusFailed:
		next = consts.ClientStatusFailed
	default:
		return resp, nil
	}

	if err = q.store.UpdateStatus(ctx, client.ID, client.Email, next); err != nil {
		return nil, fmt.Errorf("error finalizing client status, %w", err)
	}
	slog.Info("Client deployment finished", "clientID", id, "status", next, "stackStatus", stack.Status, "reason", stack.Reason)
	resp.Status = next

	return resp, nil
}

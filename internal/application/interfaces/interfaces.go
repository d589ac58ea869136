package interfaces

import (
	"context"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/dto"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/consts"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/entity"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/orchestration"
)

// ClientStore persists clients keyed by (id, email).
type ClientStore interface {
	Put(ctx context.Context, client entity.Client) error
	UpdateStatus(ctx context.Context, id, email string, status consts.ClientStatus) error
	Get(ctx context.Context, id, email string) (*entity.Client, error)
}

// WorkQueue is an ordered, deduplicating hand-off channel with lease based
// redelivery. Receive never returns more than max items.
type WorkQueue interface {
	Enqueue(ctx context.Context, groupID, body string) (string, error)
	Receive(ctx context.Context, max int) ([]dto.WorkItem, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type DeadLetters interface {
	DeadLetterDepth(ctx context.Context) (int, error)
}

type Orchestrator interface {
	CreateStack(ctx context.Context, req orchestration.StackRequest) (string, error)
	DescribeStack(ctx context.Context, name string) (*orchestration.Stack, error)
}

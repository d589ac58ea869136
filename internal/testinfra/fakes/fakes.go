// Package fakes holds in-memory stand-ins for the client store, the work queue
// and the orchestration service. They follow the same contracts as the AWS
// backed implementations and record every call in a shared Journal so tests
// can assert ordering across collaborators.
package fakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/dto"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/errs"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/interfaces"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/consts"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/entity"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/orchestration"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/google/uuid"
)

const (
	OpStorePut     = "store.put"
	OpStoreUpdate  = "store.update"
	OpQueueEnqueue = "queue.enqueue"
	OpQueueDelete  = "queue.delete"
	OpStackCreate  = "stack.create"
)

const DefaultDedupWindow = 5 * time.Minute

type Journal struct {
	mu  sync.Mutex
	ops []string
}

func (j *Journal) record(op string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ops = append(j.ops, op)
}

func (j *Journal) Ops() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.ops))
	copy(out, j.ops)
	return out
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type ClientStore struct {
	mu        sync.Mutex
	journal   *Journal
	clients   map[string]entity.Client
	PutErr    error
	UpdateErr error
	Puts      int
	Updates   int
}

var _ interfaces.ClientStore = (*ClientStore)(nil)

func NewClientStore(journal *Journal) *ClientStore {
	return &ClientStore{journal: journal, clients: make(map[string]entity.Client)}
}

func storeKey(id, email string) string {
	return id + "\x00" + email
}

func (s *ClientStore) Put(_ context.Context, client entity.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal.record(OpStorePut)
	if s.PutErr != nil {
		return s.PutErr
	}
	if existing, ok := s.clients[storeKey(client.ID, client.Email)]; ok {
		if !existing.Status.Registrable() {
			return errs.ErrClientAlreadyDeployed
		}
		client.CreatedAt = existing.CreatedAt
	}
	s.Puts++
	s.clients[storeKey(client.ID, client.Email)] = client
	return nil
}

func (s *ClientStore) UpdateStatus(_ context.Context, id, email string, status consts.ClientStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal.record(OpStoreUpdate)
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	client, ok := s.clients[storeKey(id, email)]
	if !ok {
		return errs.ErrClientNotFound
	}
	if !client.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, client.Status, status)
	}
	s.Updates++
	client.Status = status
	s.clients[storeKey(id, email)] = client
	return nil
}

func (s *ClientStore) Get(_ context.Context, id, email string) (*entity.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[storeKey(id, email)]
	if !ok {
		return nil, errs.ErrClientNotFound
	}
	return &client, nil
}

// Seed stores client without recording a Put.
func (s *ClientStore) Seed(client entity.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[storeKey(client.ID, client.Email)] = client
}

type message struct {
	id           string
	group        string
	body         string
	receipt      string
	receiveCount int
	visibleAt    time.Time
}

// FifoQueue models an SQS FIFO queue: per group ordering with at most one
// in-flight message per group, content deduplication within a window,
// visibility timeout leases and dead-lettering once a message would be
// received more than MaxReceiveCount times.
type FifoQueue struct {
	mu                sync.Mutex
	journal           *Journal
	clock             *Clock
	messages          []*message
	deadLetters       []*message
	sent              map[string]time.Time
	VisibilityTimeout time.Duration
	MaxReceiveCount   int
	DedupWindow       time.Duration
	EnqueueErr        error
	DeleteErr         error
}

var (
	_ interfaces.WorkQueue   = (*FifoQueue)(nil)
	_ interfaces.DeadLetters = (*FifoQueue)(nil)
)

func NewFifoQueue(journal *Journal, clock *Clock, visibility time.Duration, maxReceiveCount int) *FifoQueue {
	return &FifoQueue{
		journal:           journal,
		clock:             clock,
		sent:              make(map[string]time.Time),
		VisibilityTimeout: visibility,
		MaxReceiveCount:   maxReceiveCount,
		DedupWindow:       DefaultDedupWindow,
	}
}

func (q *FifoQueue) Enqueue(_ context.Context, groupID, body string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.journal.record(OpQueueEnqueue)
	if q.EnqueueErr != nil {
		return "", q.EnqueueErr
	}

	now := q.clock.Now()
	if at, ok := q.sent[body]; ok && now.Sub(at) < q.DedupWindow {
		return "", nil
	}
	q.sent[body] = now

	m := &message{id: uuid.NewString(), group: groupID, body: body, visibleAt: now}
	q.messages = append(q.messages, m)
	return m.id, nil
}

func (q *FifoQueue) Receive(_ context.Context, max int) ([]dto.WorkItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if max < 1 {
		return nil, fmt.Errorf("receive batch size must be positive, got %d", max)
	}

	now := q.clock.Now()
	blocked := make(map[string]bool)
	var out []dto.WorkItem
	var kept []*message
	for _, m := range q.messages {
		if blocked[m.group] || len(out) >= max {
			kept = append(kept, m)
			continue
		}
		if m.visibleAt.After(now) {
			blocked[m.group] = true
			kept = append(kept, m)
			continue
		}
		if m.receiveCount >= q.MaxReceiveCount {
			q.deadLetters = append(q.deadLetters, m)
			continue
		}

		m.receiveCount++
		m.receipt = uuid.NewString()
		m.visibleAt = now.Add(q.VisibilityTimeout)
		blocked[m.group] = true
		kept = append(kept, m)
		out = append(out, dto.WorkItem{
			MessageID:     m.id,
			Body:          m.body,
			ReceiptHandle: m.receipt,
			ReceiveCount:  m.receiveCount,
		})
	}
	q.messages = kept
	return out, nil
}

func (q *FifoQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.journal.record(OpQueueDelete)
	if q.DeleteErr != nil {
		return q.DeleteErr
	}
	for i, m := range q.messages {
		if m.receipt == receiptHandle {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("receipt handle %s is not valid", receiptHandle)
}

func (q *FifoQueue) DeadLetterDepth(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deadLetters), nil
}

func (q *FifoQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

func (q *FifoQueue) DeadLetterBodies() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.deadLetters))
	for _, m := range q.deadLetters {
		out = append(out, m.body)
	}
	return out
}

// Orchestrator records stack requests. Creating a stack that already exists
// succeeds, like the CloudFormation wrapper.
type Orchestrator struct {
	mu          sync.Mutex
	journal     *Journal
	stacks      map[string]*orchestration.Stack
	Requests    []orchestration.StackRequest
	CreateErr   error
	DescribeErr error
}

var _ interfaces.Orchestrator = (*Orchestrator)(nil)

func NewOrchestrator(journal *Journal) *Orchestrator {
	return &Orchestrator{journal: journal, stacks: make(map[string]*orchestration.Stack)}
}

func (o *Orchestrator) CreateStack(_ context.Context, req orchestration.StackRequest) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.journal.record(OpStackCreate)
	o.Requests = append(o.Requests, req)
	if o.CreateErr != nil {
		return "", o.CreateErr
	}
	if _, ok := o.stacks[req.StackName]; ok {
		return "", nil
	}
	id := "arn:aws:cloudformation:us-east-1:000000000000:stack/" + req.StackName + "/" + uuid.NewString()
	o.stacks[req.StackName] = &orchestration.Stack{
		Name:    req.StackName,
		ID:      id,
		Status:  types.StackStatusCreateInProgress,
		Outputs: map[string]string{},
	}
	return id, nil
}

func (o *Orchestrator) DescribeStack(_ context.Context, name string) (*orchestration.Stack, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.DescribeErr != nil {
		return nil, o.DescribeErr
	}
	stack, ok := o.stacks[name]
	if !ok {
		return nil, errs.ErrStackNotFound
	}
	cp := *stack
	return &cp, nil
}

// Complete moves a created stack to status with the given outputs.
func (o *Orchestrator) Complete(name string, status types.StackStatus, outputs map[string]string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if stack, ok := o.stacks[name]; ok {
		stack.Status = status
		stack.Outputs = outputs
	}
}

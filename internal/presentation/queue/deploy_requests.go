package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/dto"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/errs"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/interfaces"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/config"
)

type WorkHandler interface {
	Handle(ctx context.Context, item dto.WorkItem) error
}

// DeployRequestsPoller feeds deployment requests from the work queue to the
// handler. Each worker receives one batch at a time and only asks for the
// next batch once the current one is handled.
type DeployRequestsPoller struct {
	queue   interfaces.WorkQueue
	handler WorkHandler
	cfg     config.QueueConfig
	// IdleBackoff is slept after an empty receive when long polling is off.
	IdleBackoff  time.Duration
	ErrorBackoff time.Duration

	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDeployRequestsPoller(queue interfaces.WorkQueue, handler WorkHandler, cfg config.QueueConfig) *DeployRequestsPoller {
	return &DeployRequestsPoller{
		queue:        queue,
		handler:      handler,
		cfg:          cfg,
		IdleBackoff:  time.Second,
		ErrorBackoff: time.Second,
		stop:         make(chan struct{}),
	}
}

func (p *DeployRequestsPoller) Start(ctx context.Context) {
	workers := max(p.cfg.Concurrency, 1)
	slog.Info("Starting poll of DeployRequestsPoller...", "workers", workers, "batchSize", p.cfg.BatchSize)

	// receives are cancelled on Stop, handlers keep ctx so a batch in hand completes
	var receiveCtx context.Context
	receiveCtx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < workers; i++ {
		i := i
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.poll(ctx, receiveCtx, i)
		}()
	}
}

func (p *DeployRequestsPoller) poll(ctx, receiveCtx context.Context, worker int) {
	for {
		select {
		case <-p.stop:
			slog.Info("Stopping DeployRequestsPoller loop", "worker", worker)
			return
		case <-ctx.Done():
			return
		default:
		}

		items, err := p.queue.Receive(receiveCtx, p.cfg.BatchSize)
		if err != nil {
			if receiveCtx.Err() != nil {
				continue
			}
			slog.Error("err receiving from queue", "worker", worker, "err", err)
			p.sleep(ctx, p.ErrorBackoff)
			continue
		}
		if len(items) == 0 {
			if p.cfg.WaitSeconds == 0 {
				p.sleep(ctx, p.IdleBackoff)
			}
			continue
		}

		for _, item := range items {
			slog.Debug("msg received from queue", "worker", worker, "messageID", item.MessageID, "receiveCount", item.ReceiveCount)
			p.handle(ctx, item)
		}
	}
}

func (p *DeployRequestsPoller) handle(ctx context.Context, item dto.WorkItem) {
	err := p.handler.Handle(ctx, item)
	if err == nil {
		return
	}

	var poison errs.PoisonMessageError
	var retryable errs.RetryableError
	switch {
	case errors.As(err, &poison):
		slog.Error("undecodable deployment request, leaving it for the dead-letter queue", "messageID", item.MessageID, "err", err)
	case errors.As(err, &retryable):
		slog.Warn("deployment request failed, it will be redelivered", "messageID", item.MessageID,
			"receiveCount", item.ReceiveCount, "err", err)
	default:
		slog.Error("deployment request failed", "messageID", item.MessageID, "receiveCount", item.ReceiveCount, "err", err)
	}
}

func (p *DeployRequestsPoller) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stop:
	case <-ctx.Done():
	}
}

// Stop signals the workers and waits for the batches in hand to finish.
// A long poll in progress is cancelled.
func (p *DeployRequestsPoller) Stop() {
	close(p.stop)
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

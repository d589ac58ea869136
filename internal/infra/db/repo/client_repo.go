package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/errs"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/interfaces"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/consts"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/entity"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/db"
	dbs "github.com/Builder-Lawyers/stack-deployer/pkg/db"
	"github.com/jackc/pgx/v5"
)

type ClientRepo struct {
	tx pgx.Tx
}

func NewClientRepo(tx pgx.Tx) *ClientRepo {
	return &ClientRepo{tx: tx}
}

// UpsertPendingClient inserts the client or overwrites a row that is PENDING
// or FAILED, keeping its created_at. It reports false when an existing row is
// DEPLOYING or DEPLOYED.
func (r *ClientRepo) UpsertPendingClient(ctx context.Context, client db.Client) (bool, error) {
	tag, err := r.tx.Exec(ctx, `INSERT INTO deployer.clients(id, email, name, status, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (id, email) DO UPDATE SET name = EXCLUDED.name, status = EXCLUDED.status,
				updated_at = EXCLUDED.updated_at
			WHERE deployer.clients.status IN ($7, $8)`,
		client.ID, client.Email, client.Name, client.Status, client.CreatedAt, client.UpdatedAt,
		string(consts.ClientStatusPending), string(consts.ClientStatusFailed))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ClientRepo) GetClient(ctx context.Context, id, email string, forUpdate bool) (*db.Client, error) {
	query := "SELECT id, email, name, status, created_at, updated_at FROM deployer.clients WHERE id = $1 AND email = $2"
	if forUpdate {
		query += " FOR NO KEY UPDATE"
	}

	var client db.Client
	err := r.tx.QueryRow(ctx, query, id, email).Scan(&client.ID, &client.Email, &client.Name,
		&client.Status, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepo) UpdateStatus(ctx context.Context, id, email, status string, updatedAt time.Time) error {
	_, err := r.tx.Exec(ctx, "UPDATE deployer.clients SET status = $1, updated_at = $2 WHERE id = $3 AND email = $4",
		status, updatedAt, id, email)
	return err
}

// ClientStore keeps clients in Postgres, one transaction per operation.
type ClientStore struct {
	uowFactory *dbs.UOWFactory
	now        func() time.Time
}

var _ interfaces.ClientStore = (*ClientStore)(nil)

func NewClientStore(uowFactory *dbs.UOWFactory) *ClientStore {
	return &ClientStore{uowFactory: uowFactory, now: time.Now}
}

func (s *ClientStore) Put(ctx context.Context, client entity.Client) (err error) {
	uow := s.uowFactory.GetUoW()
	tx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Finalize(ctx, &err)

	stored, err := NewClientRepo(tx).UpsertPendingClient(ctx, db.MapClientEntityToModel(client, s.now().UTC()))
	if err != nil {
		return fmt.Errorf("error putting client %s, %w", client.ID, err)
	}
	if !stored {
		return errs.ErrClientAlreadyDeployed
	}
	return nil
}

func (s *ClientStore) UpdateStatus(ctx context.Context, id, email string, status consts.ClientStatus) (err error) {
	uow := s.uowFactory.GetUoW()
	tx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Finalize(ctx, &err)

	clientRepo := NewClientRepo(tx)
	current, err := clientRepo.GetClient(ctx, id, email, true)
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrClientNotFound
	}
	if err != nil {
		return fmt.Errorf("error getting client %s, %w", id, err)
	}

	from := consts.ClientStatus(current.Status)
	if from == status {
		slog.Debug("client already has requested status", "clientID", id, "status", status)
		return nil
	}
	if !from.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, from, status)
	}

	if err = clientRepo.UpdateStatus(ctx, id, email, string(status), s.now().UTC()); err != nil {
		return fmt.Errorf("error updating status of client %s, %w", id, err)
	}
	return nil
}

func (s *ClientStore) Get(ctx context.Context, id, email string) (_ *entity.Client, err error) {
	uow := s.uowFactory.GetUoW()
	tx, err := uow.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Finalize(ctx, &err)

	client, err := NewClientRepo(tx).GetClient(ctx, id, email, false)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting client %s, %w", id, err)
	}

	out := db.MapClientModelToEntity(*client)
	return &out, nil
}

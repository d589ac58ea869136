package db

import (
	"time"

	"github.com/Builder-Lawyers/stack-deployer/internal/domain/consts"
	"github.com/Builder-Lawyers/stack-deployer/internal/domain/entity"
)

func MapClientEntityToModel(client entity.Client, now time.Time) Client {
	createdAt := client.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return Client{
		ID:        client.ID,
		Email:     client.Email,
		Name:      client.Name,
		Status:    string(client.Status),
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
}

func MapClientModelToEntity(client Client) entity.Client {
	return entity.Client{
		ID:        client.ID,
		Name:      client.Name,
		Email:     client.Email,
		CreatedAt: client.CreatedAt.UTC(),
		Status:    consts.ClientStatus(client.Status),
	}
}

package entity

import (
	"time"

	"github.com/Builder-Lawyers/stack-deployer/internal/domain/consts"
)

// Client is a paying customer whose infrastructure is awaiting or undergoing
// provisioning. ID and Email together form the store key.
type Client struct {
	ID        string              `json:"id" dynamodbav:"id"`
	Name      string              `json:"name" dynamodbav:"name"`
	Email     string              `json:"email" dynamodbav:"email"`
	CreatedAt time.Time           `json:"createdAt,omitzero" dynamodbav:"createdAt"`
	Status    consts.ClientStatus `json:"status,omitempty" dynamodbav:"status,omitempty"`
}

func NewPendingClient(id, name, email string, now time.Time) Client {
	return Client{
		ID:        id,
		Name:      name,
		Email:     email,
		CreatedAt: now.UTC(),
		Status:    consts.ClientStatusPending,
	}
}

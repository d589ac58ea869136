package consts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	all := []ClientStatus{ClientStatusPending, ClientStatusDeploying, ClientStatusDeployed, ClientStatusFailed}
	for _, from := range all {
		assert.False(t, from.CanTransitionTo(ClientStatusPending), "%s must not go back to PENDING", from)
	}

	assert.True(t, ClientStatusPending.CanTransitionTo(ClientStatusDeploying))
	assert.True(t, ClientStatusDeploying.CanTransitionTo(ClientStatusDeploying))
	assert.True(t, ClientStatusDeploying.CanTransitionTo(ClientStatusDeployed))
	assert.True(t, ClientStatusFailed.CanTransitionTo(ClientStatusDeploying))
	assert.False(t, ClientStatusDeployed.CanTransitionTo(ClientStatusDeploying))
	assert.False(t, ClientStatusPending.CanTransitionTo(ClientStatusDeployed))
}

func TestAllowedFromReturnsCopy(t *testing.T) {
	from := AllowedFrom(ClientStatusDeploying)
	from[0] = ClientStatusDeployed
	assert.Equal(t, ClientStatusPending, AllowedFrom(ClientStatusDeploying)[0])
}

func TestValid(t *testing.T) {
	assert.True(t, ClientStatusFailed.Valid())
	assert.False(t, ClientStatus("DELETED").Valid())
}

func TestRegistrable(t *testing.T) {
	assert.True(t, ClientStatusPending.Registrable())
	assert.True(t, ClientStatusFailed.Registrable())
	assert.False(t, ClientStatusDeploying.Registrable())
	assert.False(t, ClientStatusDeployed.Registrable())
}

package consts

type ClientStatus string

const (
	ClientStatusPending   ClientStatus = "PENDING"
	ClientStatusDeploying ClientStatus = "DEPLOYING"
	ClientStatusDeployed  ClientStatus = "DEPLOYED"
	ClientStatusFailed    ClientStatus = "FAILED"
)

// transitions lists, for every target status, the statuses a client may be in
// before moving to it. Nothing moves back to PENDING.
var transitions = map[ClientStatus][]ClientStatus{
	ClientStatusDeploying: {ClientStatusPending, ClientStatusDeploying, ClientStatusFailed},
	ClientStatusDeployed:  {ClientStatusDeploying, ClientStatusDeployed},
	ClientStatusFailed:    {ClientStatusPending, ClientStatusDeploying, ClientStatusFailed},
}

func (s ClientStatus) Valid() bool {
	switch s {
	case ClientStatusPending, ClientStatusDeploying, ClientStatusDeployed, ClientStatusFailed:
		return true
	}
	return false
}

func (s ClientStatus) CanTransitionTo(next ClientStatus) bool {
	for _, from := range transitions[next] {
		if from == s {
			return true
		}
	}
	return false
}

// Registrable reports whether a new payment may register the client again,
// starting a new attempt from PENDING.
func (s ClientStatus) Registrable() bool {
	return s == ClientStatusPending || s == ClientStatusFailed
}

// AllowedFrom returns the statuses from which next can be reached.
func AllowedFrom(next ClientStatus) []ClientStatus {
	from := transitions[next]
	out := make([]ClientStatus, len(from))
	copy(out, from)
	return out
}

type StackStatus string

const (
	StackStatusInProgress StackStatus = "IN_PROGRESS"
	StackStatusComplete   StackStatus = "COMPLETE"
	StackStatusFailed     StackStatus = "FAILED"
	StackStatusNotFound   StackStatus = "NOT_FOUND"
)

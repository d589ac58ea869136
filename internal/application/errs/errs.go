package errs

import (
	"errors"
	"fmt"
)

var (
	ErrClientNotFound        = errors.New("client not found")
	ErrClientAlreadyDeployed = errors.New("client is already deploying or deployed")
	ErrInvalidTransition     = errors.New("invalid client status transition")
	ErrStackNotFound         = errors.New("stack not found")
)

// NotConfirmedError marks an inbound event that does not confirm a payment.
type NotConfirmedError struct {
	Reason string
}

func (e NotConfirmedError) Error() string {
	return fmt.Sprintf("payment not confirmed: %s", e.Reason)
}

// RetryableError wraps failures that are left to queue redelivery.
type RetryableError struct {
	Err error
}

func (t RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %v", t.Err)
}

func (t RetryableError) Unwrap() error {
	return t.Err
}

// PoisonMessageError is returned for queue payloads that can never be processed.
type PoisonMessageError struct {
	MessageID string
	Err       error
}

func (p PoisonMessageError) Error() string {
	return fmt.Sprintf("poison message %s: %v", p.MessageID, p.Err)
}

func (p PoisonMessageError) Unwrap() error {
	return p.Err
}

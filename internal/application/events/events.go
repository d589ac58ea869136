package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/errs"
	"github.com/stripe/stripe-go/v82"
)

// PaymentConfirmed carries the customer identity of a successfully paid invoice.
type PaymentConfirmed struct {
	EventID       string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
}

func (e PaymentConfirmed) GetType() string {
	return string(stripe.EventTypeInvoicePaymentSucceeded)
}

// ParsePaymentConfirmed decodes a payment provider event. Anything that is not a
// well formed invoice.payment_succeeded event yields a NotConfirmedError.
func ParsePaymentConfirmed(body []byte) (PaymentConfirmed, error) {
	var event stripe.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return PaymentConfirmed{}, errs.NotConfirmedError{Reason: fmt.Sprintf("malformed event, %v", err)}
	}
	if event.Type != stripe.EventTypeInvoicePaymentSucceeded {
		return PaymentConfirmed{}, errs.NotConfirmedError{Reason: fmt.Sprintf("event type %q", event.Type)}
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return PaymentConfirmed{}, errs.NotConfirmedError{Reason: "event has no data object"}
	}

	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return PaymentConfirmed{}, errs.NotConfirmedError{Reason: fmt.Sprintf("malformed invoice, %v", err)}
	}
	if invoice.Customer == nil || strings.TrimSpace(invoice.Customer.ID) == "" {
		return PaymentConfirmed{}, errs.NotConfirmedError{Reason: "invoice has no customer"}
	}
	// email is part of the client key
	if strings.TrimSpace(invoice.CustomerEmail) == "" {
		return PaymentConfirmed{}, errs.NotConfirmedError{Reason: "invoice has no customer email"}
	}

	return PaymentConfirmed{
		EventID:       event.ID,
		CustomerID:    invoice.Customer.ID,
		CustomerName:  invoice.CustomerName,
		CustomerEmail: invoice.CustomerEmail,
	}, nil
}

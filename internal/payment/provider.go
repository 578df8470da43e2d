package payment

import "context"

// Operation statuses as the provider reports them.
const (
	OperationStatusSuccess = "success"
	OperationDirectionIn   = "in"
)

// Operation is one wallet operation from the provider's history.
type Operation struct {
	OperationID string
	Status      string
	Direction   string
	Label       string
	Amount      float64
	Datetime    string
}

// ChargeRequest describes a charge to present to the user.
type ChargeRequest struct {
	Token  string
	Amount float64
	Title  string
}

// Provider is the external payment capability: creating a checkout URL for a
// charge and listing wallet operations for reconciliation.
//
// ListOperations with an empty label returns recent history; with a label it
// returns only operations carrying that exact label.
type Provider interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (string, error)
	ListOperations(ctx context.Context, label string) ([]Operation, error)
}

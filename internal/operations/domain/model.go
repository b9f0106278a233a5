package domain

import (
	"encoding/json"
	"time"
)

type OperationStatus string

const (
	StatusOpen       OperationStatus = "open"
	StatusAssigned   OperationStatus = "assigned"
	StatusInProgress OperationStatus = "in_progress"
	StatusCompleted  OperationStatus = "completed"
	StatusCancelled  OperationStatus = "cancelled"
)

func (s OperationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether the state machine permits from → to.
func CanTransition(from, to OperationStatus) bool {
	switch to {
	case StatusAssigned:
		return from == StatusOpen
	case StatusInProgress:
		return from == StatusAssigned
	case StatusCompleted:
		return from == StatusInProgress
	case StatusCancelled:
		return from == StatusOpen || from == StatusAssigned || from == StatusInProgress
	}
	return false
}

// Assignment is either unassigned or carries a provider id; "assigned
// without an id" is unrepresentable.
type Assignment struct {
	providerID string
}

func Unassigned() Assignment { return Assignment{} }

func AssignedTo(providerID string) Assignment {
	return Assignment{providerID: providerID}
}

// AssignmentFrom builds an Assignment from a nullable column.
func AssignmentFrom(providerID *string) Assignment {
	if providerID == nil || *providerID == "" {
		return Assignment{}
	}
	return Assignment{providerID: *providerID}
}

func (a Assignment) Assigned() bool { return a.providerID != "" }

func (a Assignment) ProviderID() (string, bool) {
	return a.providerID, a.providerID != ""
}

// Ptr returns the provider id as a nullable column value.
func (a Assignment) Ptr() *string {
	if a.providerID == "" {
		return nil
	}
	id := a.providerID
	return &id
}

func (a Assignment) MarshalJSON() ([]byte, error) {
	if a.providerID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(a.providerID)
}

func (a *Assignment) UnmarshalJSON(b []byte) error {
	var id *string
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	*a = AssignmentFrom(id)
	return nil
}

// Operation is a unit of paid work requested by a client. Called "project"
// in some payloads; escrows reference it through project_id.
type Operation struct {
	ID             string          `json:"id"`
	ClientID       string          `json:"client_id"`
	Provider       Assignment      `json:"provider_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	BudgetAmount   int64           `json:"budget_amount"`
	BudgetCurrency string          `json:"budget_currency"`
	Status         OperationStatus `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Event types published on lifecycle changes.
const (
	EventCreated   = "operation.created"
	EventAssigned  = "operation.assigned"
	EventStarted   = "operation.started"
	EventCompleted = "operation.completed"
	EventCancelled = "operation.cancelled"
)

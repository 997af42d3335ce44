package domain

import (
	"time"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusProcessed  Status = "PROCESSED"
)

const DefaultCurrency = "INR"

// Intake outcomes reported back to the webhook caller.
const (
	AckProcessing        = "processing"
	AckDuplicate         = "duplicate"
	AckAlreadyProcessing = "already_processing"
)

// Transaction is the persisted record. Amount is in minor units.
type Transaction struct {
	TransactionID      string     `json:"transaction_id"`
	SourceAccount      string     `json:"source_account"`
	DestinationAccount string     `json:"destination_account"`
	Amount             int64      `json:"amount"`
	Currency           string     `json:"currency"`
	Status             Status     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	ProcessedAt        *time.Time `json:"processed_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TransactionUpdate is applied to an existing record by key.
// A nil ProcessedAt leaves the stored value untouched.
type TransactionUpdate struct {
	Status      Status
	ProcessedAt *time.Time
	UpdatedAt   time.Time
}

// Apply returns a copy of t with the update applied.
func (u TransactionUpdate) Apply(t Transaction) Transaction {
	t.Status = u.Status
	if u.ProcessedAt != nil {
		processedAt := *u.ProcessedAt
		t.ProcessedAt = &processedAt
	}
	t.UpdatedAt = u.UpdatedAt
	return t
}

// WebhookPayload is the DTO for incoming webhook deliveries. Amount is a
// pointer so that an absent field can be told apart from zero.
type WebhookPayload struct {
	TransactionID      string   `json:"transaction_id"`
	SourceAccount      string   `json:"source_account"`
	DestinationAccount string   `json:"destination_account"`
	Amount             *float64 `json:"amount"`
	Currency           string   `json:"currency"`
}

// WebhookAck is the 202 body.
type WebhookAck struct {
	Acknowledged  bool   `json:"acknowledged"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// TransactionResponse is the query view with the amount in major units.
type TransactionResponse struct {
	TransactionID      string     `json:"transaction_id"`
	SourceAccount      string     `json:"source_account"`
	DestinationAccount string     `json:"destination_account"`
	Amount             float64    `json:"amount"`
	Currency           string     `json:"currency"`
	Status             Status     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	ProcessedAt        *time.Time `json:"processed_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func NewTransactionResponse(t *Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID:      t.TransactionID,
		SourceAccount:      t.SourceAccount,
		DestinationAccount: t.DestinationAccount,
		Amount:             FromMinorUnits(t.Amount),
		Currency:           t.Currency,
		Status:             t.Status,
		CreatedAt:          t.CreatedAt,
		ProcessedAt:        t.ProcessedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// HealthResponse is served on the health paths.
type HealthResponse struct {
	Status      string    `json:"status"`
	CurrentTime time.Time `json:"current_time"`
	Service     string    `json:"service"`
	Version     string    `json:"version"`
}

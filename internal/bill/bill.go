package bill

import "time"

// Status is the approval state of a bill. It is set to StatusPending on
// creation and only changed by the approval workflow.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
)

// Navigation targets used after user actions
const (
	BillsPath   = "/employee/bills"
	NewBillPath = "/employee/bill/new"
)

// Bill represents an expense bill submitted by an employee
type Bill struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Type       string    `json:"type"`
	Name       string    `json:"name"`
	Date       string    `json:"date"` // YYYY-MM-DD, may be malformed in legacy records
	Amount     int       `json:"amount"`
	VAT        int       `json:"vat"`
	Pct        int       `json:"pct"`
	Commentary string    `json:"commentary,omitempty"`
	FileURL    string    `json:"fileUrl"`
	FileName   string    `json:"fileName"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// Session is the authenticated user as persisted by the login flow
type Session struct {
	Type  string `json:"type"`
	Email string `json:"email"`
}

// Attachment is a receipt file accepted by the store
type Attachment struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	Key      string `json:"key"`
}

// AttachmentRequest carries an uploaded receipt to the store
type AttachmentRequest struct {
	Email       string
	FileName    string
	ContentType string
	Data        []byte
}

// ExpenseTypes lists the categories offered by the new bill form
var ExpenseTypes = []string{
	"Transports",
	"Restaurants et bars",
	"Hôtel et logement",
	"Services en ligne",
	"IT et électronique",
	"Equipement et matériel",
	"Fournitures de bureau",
}

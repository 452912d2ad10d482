package scanning

import "context"

// ReceiptData holds the form values suggested for a scanned receipt
type ReceiptData struct {
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Date   string `json:"date,omitempty"` // YYYY-MM-DD, empty when not found
	Amount int    `json:"amount"`
	VAT    int    `json:"vat"`
}

// Scanner extracts bill form values from a receipt image
type Scanner interface {
	// ScanReceipt analyzes a PNG or JPEG receipt
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error)
	// Close releases the scanner's resources
	Close() error
}

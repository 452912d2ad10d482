package bill

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultPct is used when the form's pct field is empty or invalid
	DefaultPct = 20

	// InvalidFileTypeMessage is the alert shown for rejected receipts
	InvalidFileTypeMessage = "Seuls les fichiers jpg, jpeg et png sont acceptés"
)

var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
}

// Alerter shows a blocking message to the user
type Alerter interface {
	Alert(message string)
}

// AlertFunc adapts a function to the Alerter interface
type AlertFunc func(message string)

func (f AlertFunc) Alert(message string) { f(message) }

// NavigateFunc moves the user to another page
type NavigateFunc func(path string)

// FileRef is a receipt file chosen by the user
type FileRef struct {
	Name        string
	ContentType string
	Data        []byte
}

// PendingUpload is a receipt accepted by the store but not yet attached to a bill
type PendingUpload struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	Key      string `json:"key,omitempty"`
}

// Form holds the raw values of the new bill form
type Form struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	Date       string `json:"date"`
	Amount     string `json:"amount"`
	VAT        string `json:"vat"`
	Pct        string `json:"pct"`
	Commentary string `json:"commentary"`
}

// Submission stages a receipt and submits a new bill for one user
type Submission struct {
	store    Store
	session  Session
	navigate NavigateFunc
	alerter  Alerter
	pending  PendingUpload
}

// NewSubmission creates a Submission for the session's user
func NewSubmission(store Store, session Session, navigate NavigateFunc, alerter Alerter) *Submission {
	if navigate == nil {
		navigate = func(string) {}
	}
	if alerter == nil {
		alerter = AlertFunc(func(string) {})
	}
	return &Submission{
		store:    store,
		session:  session,
		navigate: navigate,
		alerter:  alerter,
	}
}

// Pending returns the currently staged receipt
func (s *Submission) Pending() PendingUpload {
	return s.pending
}

// SetPending restores a receipt staged by an earlier request
func (s *Submission) SetPending(p PendingUpload) {
	s.pending = p
}

// fileExtension returns the lowercased text after the last dot
func fileExtension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// SelectFile validates the chosen receipt and uploads it to the store.
// Rejected files alert the user and clear any previously staged receipt.
func (s *Submission) SelectFile(ctx context.Context, file FileRef) error {
	ext := fileExtension(file.Name)
	if !allowedExtensions[ext] {
		s.pending = PendingUpload{}
		s.alerter.Alert(InvalidFileTypeMessage)
		return &ValidationError{Kind: InvalidFileType, Field: "file", Value: file.Name}
	}

	s.pending = PendingUpload{}
	attachment, err := s.store.CreateAttachment(ctx, AttachmentRequest{
		Email:       s.session.Email,
		FileName:    file.Name,
		ContentType: file.ContentType,
		Data:        file.Data,
	})
	if err != nil {
		slog.Error("Failed to upload receipt",
			"filename", file.Name,
			"file_size", len(file.Data),
			"error", err,
		)
		return ClassifyStoreError(err)
	}

	s.pending = PendingUpload{
		FileURL:  attachment.FileURL,
		FileName: attachment.FileName,
		Key:      attachment.Key,
	}
	return nil
}

// Submit builds a pending bill from the form and the staged receipt, stores it
// and navigates back to the bill list once it is saved.
func (s *Submission) Submit(ctx context.Context, form Form) (*Bill, error) {
	if s.pending.FileURL == "" || s.pending.FileName == "" {
		return nil, &ValidationError{Kind: MissingAttachment, Field: "file"}
	}
	if err := s.confirmPending(ctx); err != nil {
		return nil, err
	}

	bill, err := s.build(form)
	if err != nil {
		return nil, err
	}

	created, err := s.store.Create(ctx, bill)
	if err != nil {
		slog.Error("Failed to create bill", "name", bill.Name, "error", err)
		return nil, ClassifyStoreError(err)
	}

	s.pending = PendingUpload{}
	s.navigate(BillsPath)
	return created, nil
}

// confirmPending replaces the staged receipt with the store's record when the
// store keeps one, then re-checks the file type
func (s *Submission) confirmPending(ctx context.Context) error {
	if resolver, ok := s.store.(AttachmentResolver); ok {
		attachment, err := resolver.ResolveAttachment(ctx, s.session.Email, s.pending.Key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return &ValidationError{Kind: UnknownAttachment, Field: "file", Value: s.pending.Key}
			}
			slog.Error("Failed to resolve receipt", "key", s.pending.Key, "error", err)
			return ClassifyStoreError(err)
		}
		s.pending = PendingUpload{
			FileURL:  attachment.FileURL,
			FileName: attachment.FileName,
			Key:      attachment.Key,
		}
	}

	if !allowedExtensions[fileExtension(s.pending.FileName)] {
		return &ValidationError{Kind: InvalidFileType, Field: "file", Value: s.pending.FileName}
	}
	return nil
}

func (s *Submission) build(form Form) (*Bill, error) {
	b := &Bill{
		Email:      s.session.Email,
		Type:       strings.TrimSpace(form.Type),
		Name:       strings.TrimSpace(form.Name),
		Date:       strings.TrimSpace(form.Date),
		Commentary: form.Commentary,
		FileURL:    s.pending.FileURL,
		FileName:   s.pending.FileName,
		Status:     StatusPending,
	}

	required := []struct{ field, value string }{
		{"type", b.Type},
		{"name", b.Name},
		{"date", b.Date},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &ValidationError{Kind: MissingField, Field: r.field}
		}
	}
	if _, err := time.Parse(DateLayout, b.Date); err != nil {
		return nil, &ValidationError{Kind: InvalidDate, Field: "date", Value: b.Date}
	}

	amount, err := parseNonNegative(form.Amount)
	if err != nil || strings.TrimSpace(form.Amount) == "" {
		return nil, &ValidationError{Kind: InvalidAmount, Field: "amount", Value: form.Amount}
	}
	b.Amount = amount

	if strings.TrimSpace(form.VAT) != "" {
		vat, err := parseNonNegative(form.VAT)
		if err != nil {
			return nil, &ValidationError{Kind: InvalidVAT, Field: "vat", Value: form.VAT}
		}
		b.VAT = vat
	}

	b.Pct = DefaultPct
	if pct, err := parseNonNegative(form.Pct); err == nil && strings.TrimSpace(form.Pct) != "" {
		b.Pct = pct
	}
	return b, nil
}

var maxFormValue = decimal.NewFromInt(math.MaxInt32)

// parseNonNegative reads a form number, dropping any fractional part
func parseNonNegative(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() || d.GreaterThan(maxFormValue) {
		return 0, strconv.ErrRange
	}
	return int(d.Truncate(0).IntPart()), nil
}

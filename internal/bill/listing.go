package bill

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"sync"
)

// PageState is the state of the bill list page for one fetch cycle
type PageState string

const (
	StateLoading PageState = "loading"
	StateLoaded  PageState = "loaded"
	StateError   PageState = "error"
)

// Row is a bill prepared for display
type Row struct {
	*Bill
	DisplayDate string `json:"displayDate"`
	StatusLabel string `json:"statusLabel"`
}

// Page is a snapshot of the bill list page
type Page struct {
	State PageState
	Rows  []Row
	Err   *StoreError
}

// ReceiptTarget identifies the receipt of an activated bill row
type ReceiptTarget struct {
	FileURL        string
	ContainerWidth int
}

// ReceiptModal is the receipt preview shown over the bill list
type ReceiptModal struct {
	ImageURL string        `json:"imageUrl"`
	Width    int           `json:"width"`
	Visible  bool          `json:"visible"`
	HTML     template.HTML `json:"html"`
}

var receiptTemplate = template.Must(template.New("receipt").Parse(
	`<div style="text-align: center;" class="bill-proof-container"><img width="{{.Width}}" src="{{.ImageURL}}" alt="Bill" /></div>`,
))

// Listing retrieves and formats the bills of one user
type Listing struct {
	store    Store
	session  Session
	navigate NavigateFunc

	mu    sync.Mutex
	seq   uint64
	page  Page
	modal ReceiptModal
}

// NewListing creates a Listing for the session's user
func NewListing(store Store, session Session, navigate NavigateFunc) *Listing {
	if navigate == nil {
		navigate = func(string) {}
	}
	return &Listing{
		store:    store,
		session:  session,
		navigate: navigate,
		page:     Page{State: StateLoading},
	}
}

// Page returns the state of the latest fetch cycle
func (l *Listing) Page() Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page
}

// Modal returns the receipt preview state
func (l *Listing) Modal() ReceiptModal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.modal
}

// FetchAndFormat lists the user's bills and prepares them for display in the
// order returned by the store. A cycle that is no longer the latest one does
// not update the page.
func (l *Listing) FetchAndFormat(ctx context.Context) ([]Row, error) {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.page = Page{State: StateLoading}
	l.mu.Unlock()

	bills, err := l.store.List(ctx, l.session.Email)
	if err != nil {
		serr := ClassifyStoreError(err)
		slog.Error("Failed to list bills", "email", l.session.Email, "kind", serr.Kind, "error", err)
		l.finish(seq, Page{State: StateError, Err: serr})
		return nil, serr
	}

	rows := formatRows(bills)
	l.finish(seq, Page{State: StateLoaded, Rows: rows})
	return rows, nil
}

func (l *Listing) finish(seq uint64, page Page) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.seq {
		slog.Debug("Discarding stale bill list", "seq", seq, "latest", l.seq)
		return
	}
	l.page = page
}

func formatRows(bills []*Bill) []Row {
	rows := make([]Row, 0, len(bills))
	for _, b := range bills {
		if b == nil {
			continue
		}
		display, err := FormatDate(b.Date)
		if err != nil {
			// keep corrupted records visible with their stored date
			slog.Warn("Unparsable bill date", "id", b.ID, "date", b.Date, "error", err)
			display = b.Date
		}
		if !b.Status.Valid() {
			slog.Warn("Unknown bill status", "id", b.ID, "status", b.Status)
		}
		rows = append(rows, Row{
			Bill:        b,
			DisplayDate: display,
			StatusLabel: b.Status.Label(),
		})
	}
	return rows
}

// ViewReceipt opens the receipt preview at half the container width
func (l *Listing) ViewReceipt(target ReceiptTarget) ReceiptModal {
	modal := ReceiptModal{
		ImageURL: target.FileURL,
		Width:    target.ContainerWidth / 2,
		Visible:  true,
	}
	if modal.Width < 0 {
		modal.Width = 0
	}

	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, modal); err != nil {
		slog.Warn("Failed to render receipt preview", "file_url", target.FileURL, "error", err)
	}
	modal.HTML = template.HTML(buf.String())

	l.mu.Lock()
	l.modal = modal
	l.mu.Unlock()
	return modal
}

// NewBill opens the new bill form
func (l *Listing) NewBill() {
	l.navigate(NewBillPath)
}

package bill

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/billed/internal/metrics"
)

const defaultContainerWidth = 800

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// storeErrorStatus maps a store failure to the response status
func storeErrorStatus(err *StoreError) int {
	switch err.Kind {
	case NotFound:
		return http.StatusNotFound
	case ServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// writeSubmissionError answers a failed submission call
func writeSubmissionError(w http.ResponseWriter, err error, alert string) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		msg := verr.Error()
		if alert != "" {
			msg = alert
		}
		writeError(w, msg, http.StatusBadRequest)
		return
	}
	serr := ClassifyStoreError(err)
	writeError(w, serr.Message(), storeErrorStatus(serr))
}

// readUpload reads the "file" part of a multipart request
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (FileRef, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, fmt.Sprintf("File is too large. Maximum size is %dMB.", s.cfg.MaxUploadSize>>20), http.StatusRequestEntityTooLarge)
			return FileRef{}, false
		}
		writeError(w, "Error parsing form", http.StatusBadRequest)
		return FileRef{}, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, "No file was selected. Please choose a file to upload.", http.StatusBadRequest)
		return FileRef{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return FileRef{}, false
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(header.Filename)) {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		default:
			contentType = "application/octet-stream"
		}
	}

	return FileRef{Name: header.Filename, ContentType: contentType, Data: data}, true
}

// handleExpenseTypes returns the categories offered by the new bill form
func (s *Server) handleExpenseTypes(w http.ResponseWriter, r *http.Request, _ Session) {
	writeJSON(w, http.StatusOK, ExpenseTypes)
}

// handleListBills returns the session user's bills ready for display
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request, session Session) {
	listing := NewListing(s.store, session, nil)
	rows, err := listing.FetchAndFormat(r.Context())
	if err != nil {
		serr := ClassifyStoreError(err)
		writeError(w, serr.Message(), storeErrorStatus(serr))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleUploadAttachment validates and stages a receipt
func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request, session Session) {
	file, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	var alert string
	submission := NewSubmission(s.store, session, nil, AlertFunc(func(msg string) { alert = msg }))
	if err := submission.SelectFile(r.Context(), file); err != nil {
		if alert != "" {
			s.cfg.Metrics.Attachment(metrics.OutcomeRejected)
		} else {
			s.cfg.Metrics.Attachment(metrics.OutcomeFailed)
		}
		writeSubmissionError(w, err, alert)
		return
	}
	s.cfg.Metrics.Attachment(metrics.OutcomeStored)
	writeJSON(w, http.StatusCreated, submission.Pending())
}

// formValue accepts both JSON strings and numbers
type formValue string

func (v *formValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = formValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*v = formValue(n.String())
	return nil
}

// createBillRequest is the body of POST /api/bills
type createBillRequest struct {
	Type       formValue `json:"type"`
	Name       formValue `json:"name"`
	Date       formValue `json:"date"`
	Amount     formValue `json:"amount"`
	VAT        formValue `json:"vat"`
	Pct        formValue `json:"pct"`
	Commentary formValue `json:"commentary"`
	FileURL    string    `json:"fileUrl"`
	FileName   string    `json:"fileName"`
	Key        string    `json:"key"`
}

// handleCreateBill submits a new bill using a previously staged receipt
func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request, session Session) {
	var req createBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var location string
	submission := NewSubmission(s.store, session, func(path string) { location = path }, nil)
	submission.SetPending(PendingUpload{FileURL: req.FileURL, FileName: req.FileName, Key: req.Key})

	created, err := submission.Submit(r.Context(), Form{
		Type:       string(req.Type),
		Name:       string(req.Name),
		Date:       string(req.Date),
		Amount:     string(req.Amount),
		VAT:        string(req.VAT),
		Pct:        string(req.Pct),
		Commentary: string(req.Commentary),
	})
	if err != nil {
		writeSubmissionError(w, err, "")
		return
	}
	s.cfg.Metrics.BillCreated()

	if location != "" {
		w.Header().Set("Location", location)
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleViewReceipt returns the receipt preview for a bill row
func (s *Server) handleViewReceipt(w http.ResponseWriter, r *http.Request, session Session) {
	width := defaultContainerWidth
	if raw := r.URL.Query().Get("width"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, "Invalid width", http.StatusBadRequest)
			return
		}
		width = n
	}

	listing := NewListing(s.store, session, nil)
	modal := listing.ViewReceipt(ReceiptTarget{
		FileURL:        r.URL.Query().Get("file_url"),
		ContainerWidth: width,
	})
	writeJSON(w, http.StatusOK, modal)
}

// handleScanReceipt suggests form values for a receipt
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request, _ Session) {
	if s.cfg.Scanner == nil {
		writeError(w, "Receipt scanning is not enabled", http.StatusNotFound)
		return
	}

	file, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	if !allowedExtensions[fileExtension(file.Name)] {
		s.cfg.Metrics.Scan(metrics.OutcomeRejected)
		writeError(w, InvalidFileTypeMessage, http.StatusBadRequest)
		return
	}

	data, err := s.cfg.Scanner.ScanReceipt(r.Context(), file.Data, file.ContentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", file.Name,
			"content_type", file.ContentType,
			"file_size", len(file.Data),
			"error", err,
		)
		s.cfg.Metrics.Scan(metrics.OutcomeFailed)
		writeError(w, "Could not read the receipt", http.StatusBadGateway)
		return
	}
	s.cfg.Metrics.Scan(metrics.OutcomeScanned)
	writeJSON(w, http.StatusOK, data)
}

// handleGetFile serves a stored receipt
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request, _ Session) {
	if s.cfg.Files == nil {
		writeError(w, "File not found", http.StatusNotFound)
		return
	}
	key := r.PathValue("key")
	data, contentType, err := s.cfg.Files.OpenAttachment(r.Context(), key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("Error reading receipt", "key", key, "error", err)
		}
		writeError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

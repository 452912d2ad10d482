package bill

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence boundary for bills and their receipts
type Store interface {
	// List returns the bills owned by email, most recent date first
	List(ctx context.Context, email string) ([]*Bill, error)

	// Create persists a bill and returns it with its assigned ID
	Create(ctx context.Context, bill *Bill) (*Bill, error)

	// CreateAttachment uploads a receipt file
	CreateAttachment(ctx context.Context, req AttachmentRequest) (*Attachment, error)
}

// AttachmentResolver is implemented by stores that keep attachment records.
// ResolveAttachment returns the receipt stored under key for email, or an
// error wrapping ErrNotFound when it is missing or owned by someone else.
type AttachmentResolver interface {
	ResolveAttachment(ctx context.Context, email, key string) (*Attachment, error)
}

// IDGenerator generates unique IDs for bills and attachments
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// LocalStore implements Store on top of a DB and a file Storage
type LocalStore struct {
	db            DB
	storage       Storage
	fileURLPrefix string
	idGenerator   IDGenerator
	timeSource    TimeSource
}

// NewLocalStore creates a LocalStore. Attachment URLs are built by joining
// fileURLPrefix and the attachment key.
func NewLocalStore(db DB, storage Storage, fileURLPrefix string) *LocalStore {
	return NewLocalStoreWithDeps(db, storage, fileURLPrefix, &uuidGenerator{}, &defaultTimeSource{})
}

// NewLocalStoreWithDeps creates a LocalStore with custom dependencies for testing
func NewLocalStoreWithDeps(db DB, storage Storage, fileURLPrefix string, idGen IDGenerator, timeSrc TimeSource) *LocalStore {
	return &LocalStore{
		db:            db,
		storage:       storage,
		fileURLPrefix: strings.TrimSuffix(fileURLPrefix, "/"),
		idGenerator:   idGen,
		timeSource:    timeSrc,
	}
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaceRuns.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// List returns the bills owned by email ordered by date descending
func (s *LocalStore) List(ctx context.Context, email string) ([]*Bill, error) {
	all, err := s.db.ListBills(ctx)
	if err != nil {
		return nil, &StoreError{Kind: ServerError, Err: fmt.Errorf("listing bills: %w", err)}
	}

	bills := make([]*Bill, 0, len(all))
	for _, b := range all {
		if b.Email == email {
			bills = append(bills, b)
		}
	}
	// ISO dates order correctly as strings; malformed ones keep a stable spot
	slices.SortStableFunc(bills, func(a, b *Bill) int {
		return cmp.Compare(b.Date, a.Date)
	})
	return bills, nil
}

// Create persists a bill, assigning its ID and default status
func (s *LocalStore) Create(ctx context.Context, bill *Bill) (*Bill, error) {
	if missing := missingRequired(bill); missing != "" {
		return nil, &StoreError{Kind: Unknown, Err: fmt.Errorf("bill is missing %s", missing)}
	}

	saved := *bill
	saved.ID = s.idGenerator.Generate()
	if saved.Status == "" {
		saved.Status = StatusPending
	}
	saved.CreatedAt = s.timeSource.Now()

	if err := s.db.SaveBill(ctx, &saved); err != nil {
		return nil, &StoreError{Kind: ServerError, Err: fmt.Errorf("saving bill: %w", err)}
	}
	stored, err := s.db.GetBill(ctx, saved.ID)
	if err != nil {
		return nil, &StoreError{Kind: ServerError, Err: fmt.Errorf("reading back bill %s: %w", saved.ID, err)}
	}
	return stored, nil
}

func missingRequired(b *Bill) string {
	switch {
	case b.Email == "":
		return "email"
	case b.Name == "":
		return "name"
	case b.Date == "":
		return "date"
	case b.FileURL == "":
		return "fileUrl"
	case b.FileName == "":
		return "fileName"
	}
	return ""
}

// CreateAttachment saves a receipt file and records its metadata
func (s *LocalStore) CreateAttachment(ctx context.Context, req AttachmentRequest) (*Attachment, error) {
	if req.Email == "" {
		return nil, &StoreError{Kind: Unknown, Err: fmt.Errorf("attachment owner is required")}
	}

	key := fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(req.FileName))
	savedKey, err := s.storage.Save(ctx, key, req.Data, req.ContentType)
	if err != nil {
		return nil, &StoreError{Kind: ServerError, Err: fmt.Errorf("saving file: %w", err)}
	}

	meta := &AttachmentMeta{
		Key:         savedKey,
		Email:       req.Email,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		CreatedAt:   s.timeSource.Now(),
	}
	if err := s.db.SaveAttachment(ctx, meta); err != nil {
		if delErr := s.storage.Delete(ctx, savedKey); delErr != nil {
			slog.Warn("Failed to delete orphaned attachment", "key", savedKey, "error", delErr)
		}
		return nil, &StoreError{Kind: ServerError, Err: fmt.Errorf("saving attachment metadata: %w", err)}
	}

	return s.attachment(savedKey, req.FileName), nil
}

func (s *LocalStore) attachment(key, fileName string) *Attachment {
	return &Attachment{
		FileURL:  s.fileURLPrefix + "/" + url.PathEscape(key),
		FileName: fileName,
		Key:      key,
	}
}

// ResolveAttachment returns the receipt email uploaded under key
func (s *LocalStore) ResolveAttachment(ctx context.Context, email, key string) (*Attachment, error) {
	if key == "" {
		return nil, fmt.Errorf("attachment key is required: %w", ErrNotFound)
	}
	meta, err := s.db.GetAttachment(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("getting attachment: %w", err)
	}
	if meta.Email != email {
		return nil, fmt.Errorf("attachment %s: %w", key, ErrNotFound)
	}
	return s.attachment(meta.Key, meta.FileName), nil
}

// OpenAttachment returns the stored bytes and content type of a receipt
func (s *LocalStore) OpenAttachment(ctx context.Context, key string) ([]byte, string, error) {
	meta, err := s.db.GetAttachment(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("getting attachment: %w", err)
	}
	data, err := s.storage.Get(ctx, meta.Key)
	if err != nil {
		return nil, "", fmt.Errorf("getting attachment file: %w", err)
	}
	return data, meta.ContentType, nil
}

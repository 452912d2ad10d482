package bill

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	billBucketName       = "bills"
	attachmentBucketName = "attachments"
)

// AttachmentMeta describes a stored receipt file
type AttachmentMeta struct {
	Key         string    `json:"key"`
	Email       string    `json:"email"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// DB defines the interface for database operations
type DB interface {
	// SaveBill saves a bill to the database
	SaveBill(ctx context.Context, bill *Bill) error

	// GetBill retrieves a bill by ID
	GetBill(ctx context.Context, id string) (*Bill, error)

	// ListBills returns all bills
	ListBills(ctx context.Context) ([]*Bill, error)

	// SaveAttachment records metadata for a stored receipt file
	SaveAttachment(ctx context.Context, meta *AttachmentMeta) error

	// GetAttachment retrieves attachment metadata by key
	GetAttachment(ctx context.Context, key string) (*AttachmentMeta, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{billBucketName, attachmentBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func (b *BoltDB) put(bucketName, key string, v any) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s record: %w", bucketName, err)
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	})
}

func (b *BoltDB) get(bucketName, key string, v any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucketName, key, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

// SaveBill saves a bill to the database
func (b *BoltDB) SaveBill(_ context.Context, bill *Bill) error {
	return b.put(billBucketName, bill.ID, bill)
}

// GetBill retrieves a bill by ID
func (b *BoltDB) GetBill(_ context.Context, id string) (*Bill, error) {
	var bill Bill
	if err := b.get(billBucketName, id, &bill); err != nil {
		return nil, err
	}
	return &bill, nil
}

// ListBills returns all bills in key order
func (b *BoltDB) ListBills(_ context.Context) ([]*Bill, error) {
	bills := make([]*Bill, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(billBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var bill Bill
			if err := json.Unmarshal(v, &bill); err != nil {
				return fmt.Errorf("unmarshaling bill %s: %w", k, err)
			}
			bills = append(bills, &bill)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return bills, nil
}

// SaveAttachment records metadata for a stored receipt file
func (b *BoltDB) SaveAttachment(_ context.Context, meta *AttachmentMeta) error {
	return b.put(attachmentBucketName, meta.Key, meta)
}

// GetAttachment retrieves attachment metadata by key
func (b *BoltDB) GetAttachment(_ context.Context, key string) (*AttachmentMeta, error) {
	var meta AttachmentMeta
	if err := b.get(attachmentBucketName, key, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

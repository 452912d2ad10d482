package bill

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveBill", func() {
		var (
			bill *Bill
			err  error
		)

		BeforeEach(func() {
			bill = &Bill{
				ID:        "test-id",
				Email:     "a@a",
				Type:      "Transports",
				Name:      "test",
				Date:      "2021-09-01",
				Amount:    30,
				VAT:       10,
				Pct:       20,
				FileURL:   "http://localhost/files/test.png",
				FileName:  "test.png",
				Status:    StatusPending,
				CreatedAt: time.Date(2021, 9, 1, 10, 0, 0, 0, time.UTC),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveBill(ctx, bill)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should save every field", func() {
			saved, getErr := db.GetBill(ctx, "test-id")
			Expect(getErr).NotTo(HaveOccurred())
			Expect(saved).To(Equal(bill))
		})

		When("the bill already exists", func() {
			It("should overwrite it", func() {
				bill.Status = StatusAccepted
				Expect(db.SaveBill(ctx, bill)).To(Succeed())
				saved, getErr := db.GetBill(ctx, "test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Status).To(Equal(StatusAccepted))
			})
		})
	})

	Describe("GetBill", func() {
		It("should return ErrNotFound for unknown IDs", func() {
			_, err := db.GetBill(ctx, "missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("ListBills", func() {
		When("no bills exist", func() {
			It("should return an empty list", func() {
				bills, err := db.ListBills(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(bills).NotTo(BeNil())
				Expect(bills).To(BeEmpty())
			})
		})

		When("bills exist", func() {
			BeforeEach(func() {
				for _, b := range fixtureBills() {
					Expect(db.SaveBill(ctx, b)).To(Succeed())
				}
			})

			It("should return all of them", func() {
				bills, err := db.ListBills(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(bills).To(HaveLen(4))
			})
		})

		When("a record keeps a malformed date", func() {
			BeforeEach(func() {
				Expect(db.SaveBill(ctx, &Bill{ID: "legacy", Email: "a@a", Date: "32/13/2020"})).To(Succeed())
			})

			It("should return it untouched", func() {
				bills, err := db.ListBills(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(bills).To(ConsistOf(HaveField("Date", "32/13/2020")))
			})
		})
	})

	Describe("attachments", func() {
		It("should save and retrieve metadata", func() {
			meta := &AttachmentMeta{
				Key:         "k_test.png",
				Email:       "a@a",
				FileName:    "test.png",
				ContentType: "image/png",
				CreatedAt:   time.Date(2021, 9, 1, 10, 0, 0, 0, time.UTC),
			}
			Expect(db.SaveAttachment(ctx, meta)).To(Succeed())

			saved, err := db.GetAttachment(ctx, "k_test.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(Equal(meta))
		})

		It("should return ErrNotFound for unknown keys", func() {
			_, err := db.GetAttachment(ctx, "missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("reopening", func() {
		It("should keep saved bills", func() {
			Expect(db.SaveBill(ctx, &Bill{ID: "persisted", Email: "a@a"})).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = db.GetBill(ctx, "persisted")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})

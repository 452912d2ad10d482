package bill

import (
	"context"
	"errors"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PostgresDB", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("NewPostgresDB", func() {
		It("should reject a malformed dsn", func() {
			_, err := NewPostgresDB(ctx, "postgres://localhost/bills?pool_max_conns=many")
			Expect(err).To(MatchError(ContainSubstring("parse dsn")))
		})
	})

	// Runs against a real server when BILLED_TEST_DATABASE_URL is set
	When("a database is available", func() {
		var db *PostgresDB

		BeforeEach(func() {
			dsn := os.Getenv("BILLED_TEST_DATABASE_URL")
			if dsn == "" {
				Skip("BILLED_TEST_DATABASE_URL is not set")
			}
			var err error
			db, err = NewPostgresDB(ctx, dsn)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() {
				_, err := db.pool.Exec(ctx, `DELETE FROM bills WHERE email='pg@test'`)
				Expect(err).NotTo(HaveOccurred())
				db.Close()
			})
		})

		It("should round trip a bill", func() {
			bill := &Bill{
				ID: "pg-1", Email: "pg@test", Type: "Transports", Name: "taxi", Date: "2021-09-01",
				Amount: 30, VAT: 10, Pct: 20, FileURL: "u", FileName: "f.png", Status: StatusPending,
				CreatedAt: time.Date(2021, 9, 1, 10, 0, 0, 0, time.UTC),
			}
			Expect(db.SaveBill(ctx, bill)).To(Succeed())

			saved, err := db.GetBill(ctx, "pg-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Name).To(Equal("taxi"))
			Expect(saved.Status).To(Equal(StatusPending))
			Expect(saved.CreatedAt.Equal(bill.CreatedAt)).To(BeTrue())

			bills, err := db.ListBills(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(ContainElement(HaveField("ID", "pg-1")))
		})

		It("should return ErrNotFound for unknown bills", func() {
			_, err := db.GetBill(ctx, "pg-missing")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})
})

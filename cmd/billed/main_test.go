package main

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/s3storage"
)

var _ = Describe("newDB", func() {
	It("should open a bolt file when no dsn is given", func() {
		db, err := newDB(context.Background(), filepath.Join(GinkgoT().TempDir(), "billed.db"), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(db).To(BeAssignableToTypeOf(&bill.BoltDB{}))
		Expect(db.Close()).To(Succeed())
	})

	It("should return a nil database on failure", func() {
		db, err := newDB(context.Background(), "", "postgres://localhost/bills?pool_max_conns=many")
		Expect(err).To(HaveOccurred())
		Expect(db).To(BeNil())
	})
})

var _ = Describe("newStorage", func() {
	It("should build disk storage", func() {
		storage, err := newStorage(context.Background(), "disk", GinkgoT().TempDir(), s3storage.Config{})
		Expect(err).NotTo(HaveOccurred())
		Expect(storage).To(BeAssignableToTypeOf(&bill.LocalStorage{}))
	})

	It("should reject unknown storage types", func() {
		_, err := newStorage(context.Background(), "ftp", "", s3storage.Config{})
		Expect(err).To(MatchError(ContainSubstring("ftp")))
	})

	It("should require an s3 bucket", func() {
		_, err := newStorage(context.Background(), "s3", "", s3storage.Config{Endpoint: "localhost:9000"})
		Expect(err).To(MatchError(ContainSubstring("bucket")))
	})
})

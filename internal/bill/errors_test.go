package bill

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ClassifyStoreError", func() {
	It("should return nil for nil", func() {
		Expect(ClassifyStoreError(nil)).To(BeNil())
	})

	It("should keep an existing store error", func() {
		original := &StoreError{Kind: NotFound, Err: errors.New("gone")}
		wrapped := fmt.Errorf("listing: %w", original)
		Expect(ClassifyStoreError(wrapped)).To(BeIdenticalTo(original))
	})

	It("should map the not found sentinel", func() {
		err := fmt.Errorf("bills x: %w", ErrNotFound)
		Expect(ClassifyStoreError(err).Kind).To(Equal(NotFound))
	})

	DescribeTable("messages",
		func(msg string, kind StoreKind, userMessage string) {
			serr := ClassifyStoreError(errors.New(msg))
			Expect(serr.Kind).To(Equal(kind))
			Expect(serr.Message()).To(Equal(userMessage))
		},
		Entry("404", "Erreur 404", NotFound, "Erreur 404"),
		Entry("500", "Erreur 500", ServerError, "Erreur 500"),
		Entry("other", "timeout", Unknown, UnknownErrorMessage),
		Entry("port number", "dial tcp 10.0.0.1:5000: connection refused", Unknown, UnknownErrorMessage),
		Entry("bare 404 in a url", "GET http://api/bills/404abc: EOF", Unknown, UnknownErrorMessage),
	)

	It("should not leak the cause to the user", func() {
		serr := &StoreError{Kind: Unknown, Err: errors.New("GET http://internal:9000/bills: secret body")}
		Expect(serr.Message()).To(Equal(UnknownErrorMessage))
		Expect(serr.Error()).To(ContainSubstring("internal:9000"))
	})

	It("should unwrap to the cause", func() {
		cause := errors.New("disk full")
		serr := ClassifyStoreError(cause)
		Expect(errors.Is(serr, cause)).To(BeTrue())
	})
})

var _ = Describe("ValidationError", func() {
	DescribeTable("Error",
		func(err *ValidationError, want string) {
			Expect(err.Error()).To(Equal(want))
		},
		Entry("file type", &ValidationError{Kind: InvalidFileType, Value: "a.txt"}, `invalid file type "a.txt": only png, jpg and jpeg are accepted`),
		Entry("attachment", &ValidationError{Kind: MissingAttachment}, "no receipt attached"),
		Entry("field", &ValidationError{Kind: MissingField, Field: "name"}, "name is required"),
		Entry("amount", &ValidationError{Kind: InvalidAmount, Field: "amount", Value: "x"}, `invalid amount: "x"`),
		Entry("unknown receipt", &ValidationError{Kind: UnknownAttachment, Value: "k"}, `receipt "k" was not uploaded by this user`),
	)
})

package trace_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/csim/mem/trace"
)

var _ = Describe("Reader", func() {
	It("should parse every kind of record", func() {
		r := trace.NewReader(strings.NewReader(
			"I 0400d7d4,8\n" +
				" M 0421c7f0,4\n" +
				" L 04f6b868,8\n" +
				"\n" +
				" S 7ff0005c8,8\n"))

		records, err := trace.ReadAll(r)

		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(Equal([]trace.Record{
			{Op: trace.Instruction, Address: 0x0400d7d4, Size: 8},
			{Op: trace.Modify, Address: 0x0421c7f0, Size: 4},
			{Op: trace.Load, Address: 0x04f6b868, Size: 8},
			{Op: trace.Store, Address: 0x7ff0005c8, Size: 8},
		}))
		Expect(r.Line()).To(Equal(5))
	})

	It("should return EOF repeatedly at the end", func() {
		r := trace.NewReader(strings.NewReader(" L 10,1\n"))

		_, err := r.Next()
		Expect(err).NotTo(HaveOccurred())

		_, err = r.Next()
		Expect(err).To(Equal(io.EOF))
		_, err = r.Next()
		Expect(err).To(Equal(io.EOF))
	})

	It("should stop at the first malformed line", func() {
		r := trace.NewReader(strings.NewReader(
			" L 10,1\n" +
				" X 20,1\n" +
				" L 30,1\n"))

		records, err := trace.ReadAll(r)

		Expect(records).To(HaveLen(1))

		var malformed *trace.MalformedRecordError
		Expect(errors.As(err, &malformed)).To(BeTrue())
		Expect(malformed.Line).To(Equal(2))
		Expect(malformed.Text).To(Equal("X 20,1"))
		Expect(err).To(MatchError(trace.ErrUnknownOp))
	})

	It("should report an overlong line as malformed", func() {
		r := trace.NewReader(strings.NewReader(
			" L 10,1\n" +
				" L " + strings.Repeat("0", 2*trace.MaxLineLength) + ",1\n"))

		records, err := trace.ReadAll(r)

		Expect(records).To(HaveLen(1))

		var malformed *trace.MalformedRecordError
		Expect(errors.As(err, &malformed)).To(BeTrue())
		Expect(malformed.Line).To(Equal(2))
		Expect(err).To(MatchError(trace.ErrLineTooLong))
	})

	It("should accept long lines below the limit", func() {
		r := trace.NewReader(strings.NewReader(
			" L " + strings.Repeat("0", 1000) + "10,1\n"))

		records, err := trace.ReadAll(r)

		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(Equal([]trace.Record{
			{Op: trace.Load, Address: 0x10, Size: 1},
		}))
	})

	It("should report an unopenable file as an IO error", func() {
		_, err := trace.Open(filepath.Join(GinkgoT().TempDir(), "missing.trace"))

		var ioErr *trace.IOError
		Expect(errors.As(err, &ioErr)).To(BeTrue())
		Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
	})

	It("should read records from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "a.trace")
		Expect(os.WriteFile(path, []byte(" L 0,1\n S 4,1\n"), 0o644)).To(Succeed())

		r, err := trace.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		records, err := trace.ReadAll(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
	})
})

var _ = DescribeTable("ParseRecord",
	func(line string, expected trace.Record, expectedErr error) {
		rec, err := trace.ParseRecord(line)

		if expectedErr != nil {
			Expect(err).To(MatchError(expectedErr))
			return
		}

		Expect(err).NotTo(HaveOccurred())
		Expect(rec).To(Equal(expected))
	},
	Entry("load", " L 10,1", trace.Record{Op: trace.Load, Address: 0x10, Size: 1}, nil),
	Entry("tab separated", "S\tff,4", trace.Record{Op: trace.Store, Address: 0xff, Size: 4}, nil),
	Entry("0x prefix", "M 0x20,8", trace.Record{Op: trace.Modify, Address: 0x20, Size: 8}, nil),
	Entry("max address", "L ffffffffffffffff,1",
		trace.Record{Op: trace.Load, Address: 0xffffffffffffffff, Size: 1}, nil),
	Entry("unknown op", "X 10,1", trace.Record{}, trace.ErrUnknownOp),
	Entry("op without space", "L10,1", trace.Record{}, trace.ErrUnknownOp),
	Entry("missing size", "L 10", trace.Record{}, trace.ErrMissingSize),
	Entry("bad address", "L 1g,1", trace.Record{}, trace.ErrBadAddress),
	Entry("address overflow", "L 1ffffffffffffffff,1", trace.Record{}, trace.ErrBadAddress),
	Entry("negative size", "L 10,-1", trace.Record{}, trace.ErrBadSize),
	Entry("non-numeric size", "L 10,a", trace.Record{}, trace.ErrBadSize),
)

var _ = Describe("Op", func() {
	It("should count cache lookups", func() {
		Expect(trace.Load.Steps()).To(Equal(1))
		Expect(trace.Store.Steps()).To(Equal(1))
		Expect(trace.Modify.Steps()).To(Equal(2))
		Expect(trace.Instruction.Steps()).To(Equal(0))
	})
})

var _ = Describe("SliceSource", func() {
	It("should replay records independently per source", func() {
		records := []trace.Record{
			{Op: trace.Load, Address: 1, Size: 1},
			{Op: trace.Store, Address: 2, Size: 1},
		}

		a := trace.NewSliceSource(records)
		b := trace.NewSliceSource(records)

		first, err := a.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Address).To(Equal(uint64(1)))

		all, err := trace.ReadAll(b)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(Equal(records))
	})
})

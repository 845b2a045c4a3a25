package cmd

import (
	"bytes"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/csim/mem/cache"
	"github.com/sarchlab/csim/mem/trace"
	"github.com/sarchlab/csim/sim"
	"github.com/sarchlab/csim/tracing"
)

const referenceTrace = ` L 10,1
 M 20,1
 L 22,1
 S 18,1
 L 110,1
 L 210,1
 M 12,1
`

func execute(args ...string) (string, string, error) {
	rootCmd := newRootCmd()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return stdout.String(), stderr.String(), err
}

func writeTraceFile(content string) string {
	path := filepath.Join(GinkgoT().TempDir(), "test.trace")
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

	return path
}

var _ = Describe("csim", func() {
	It("should print the summary", func() {
		path := writeTraceFile(referenceTrace)

		out, _, err := execute("-s", "4", "-E", "1", "-b", "4", "-t", path)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("hits:4 misses:5 evictions:3\n"))
	})

	It("should print every record in verbose mode", func() {
		path := writeTraceFile("I 0400d7d4,8\n" + referenceTrace)

		out, _, err := execute("-s", "4", "-E", "1", "-b", "4", "-t", path, "-v")

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(`L 10,1 miss
M 20,1 miss hit
L 22,1 hit
S 18,1 hit
L 110,1 miss eviction
L 210,1 miss eviction
M 12,1 miss eviction hit
hits:4 misses:5 evictions:3
`))
	})

	It("should count conflicting addresses", func() {
		path := writeTraceFile(" L 0,1\n L 4,1\n L 0,1\n")

		out, _, err := execute("-s", "1", "-E", "1", "-b", "1", "-t", path)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("hits:0 misses:3 evictions:2\n"))
	})

	It("should accept long flag names", func() {
		path := writeTraceFile(" L 0,1\n L 0,1\n")

		out, _, err := execute("--set-bits", "0", "--ways", "2",
			"--block-bits", "0", "--trace", path)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("hits:1 misses:1 evictions:0\n"))
	})

	It("should print help", func() {
		out, _, err := execute("-h")

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("--trace"))
	})

	It("should require the geometry", func() {
		path := writeTraceFile(referenceTrace)

		out, stderr, err := execute("-s", "4", "-b", "4", "-t", path)

		Expect(err).To(MatchError(ErrMissingGeometry))
		Expect(out).To(BeEmpty())
		Expect(stderr).To(ContainSubstring("missing required geometry"))
	})

	It("should require a trace", func() {
		_, _, err := execute("-s", "4", "-E", "1", "-b", "4")

		var configErr *sim.ConfigurationError
		Expect(errors.As(err, &configErr)).To(BeTrue())
		Expect(err).To(MatchError(ErrMissingTrace))
	})

	It("should reject invalid geometries", func() {
		path := writeTraceFile(referenceTrace)

		_, _, err := execute("-s", "40", "-E", "1", "-b", "30", "-t", path)

		Expect(err).To(MatchError(cache.ErrAddressOverflow))
	})

	It("should simulate caches with many sets", func() {
		path := writeTraceFile(" L 0,1\n L 10000000000,1\n L 0,1\n L 5,1\n L 5,1\n")

		out, _, err := execute("-s", "40", "-E", "1", "-b", "0", "-t", path)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("hits:1 misses:4 evictions:2\n"))
	})

	It("should report unreadable traces", func() {
		missing := filepath.Join(GinkgoT().TempDir(), "missing.trace")

		out, _, err := execute("-s", "1", "-E", "1", "-b", "1", "-t", missing)

		var ioErr *trace.IOError
		Expect(errors.As(err, &ioErr)).To(BeTrue())
		Expect(out).To(BeEmpty())
	})

	It("should not print a summary for malformed traces", func() {
		path := writeTraceFile(" L 0,1\n X 4,1\n")

		out, _, err := execute("-s", "1", "-E", "1", "-b", "1", "-t", path)

		var malformed *trace.MalformedRecordError
		Expect(errors.As(err, &malformed)).To(BeTrue())
		Expect(malformed.Line).To(Equal(2))
		Expect(out).To(BeEmpty())
	})

	It("should reject unknown log levels", func() {
		path := writeTraceFile(referenceTrace)

		_, _, err := execute("-s", "4", "-E", "1", "-b", "4", "-t", path,
			"--log-level", "loud")

		var configErr *sim.ConfigurationError
		Expect(errors.As(err, &configErr)).To(BeTrue())
		Expect(configErr.Field).To(Equal("log-level"))
	})

	It("should take flag defaults from the environment", func() {
		Expect(os.Setenv(envLogLevel, "info")).To(Succeed())
		DeferCleanup(os.Unsetenv, envLogLevel)

		path := writeTraceFile(referenceTrace)

		_, stderr, err := execute("-s", "4", "-E", "1", "-b", "4", "-t", path)

		Expect(err).NotTo(HaveOccurred())
		Expect(stderr).To(ContainSubstring("simulation finished"))
	})

	It("should record steps and the summary", func() {
		path := writeTraceFile(referenceTrace)
		record := filepath.Join(GinkgoT().TempDir(), "run")

		out, _, err := execute("-s", "4", "-E", "1", "-b", "4", "-t", path,
			"--record", record)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("hits:4 misses:5 evictions:3\n"))

		db, err := sql.Open("sqlite3", record+".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		var steps int
		Expect(db.QueryRow(
			"SELECT COUNT(*) FROM "+tracing.AccessTable,
		).Scan(&steps)).To(Succeed())
		Expect(steps).To(Equal(9))

		var hits, misses, evictions int
		Expect(db.QueryRow(
			"SELECT Hits, Misses, Evictions FROM "+tracing.SummaryTable,
		).Scan(&hits, &misses, &evictions)).To(Succeed())
		Expect([]int{hits, misses, evictions}).To(Equal([]int{4, 5, 3}))
	})

	It("should refuse to overwrite a recording", func() {
		path := writeTraceFile(referenceTrace)
		record := filepath.Join(GinkgoT().TempDir(), "run")
		Expect(os.WriteFile(record+".sqlite3", nil, 0o644)).To(Succeed())

		_, _, err := execute("-s", "4", "-E", "1", "-b", "4", "-t", path,
			"--record", record)

		Expect(err).To(MatchError(os.ErrExist))
	})

	It("should not keep the recording of a failed run", func() {
		bad := writeTraceFile(" L 10,1\n L zz,1\n")
		good := writeTraceFile(referenceTrace)
		record := filepath.Join(GinkgoT().TempDir(), "run")

		_, _, err := execute("-s", "4", "-E", "1", "-b", "4", "-t", bad,
			"--record", record)

		var malformed *trace.MalformedRecordError
		Expect(errors.As(err, &malformed)).To(BeTrue())
		Expect(record + ".sqlite3").NotTo(BeAnExistingFile())

		out, _, err := execute("-s", "4", "-E", "1", "-b", "4", "-t", good,
			"--record", record)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("hits:4 misses:5 evictions:3\n"))
		Expect(record + ".sqlite3").To(BeAnExistingFile())
	})
})

var _ = Describe("csim sweep", func() {
	It("should print one line per geometry in order", func() {
		path := writeTraceFile(referenceTrace)

		out, _, err := execute("sweep", "-t", path,
			"--sets", "4,0", "--ways", "1", "--blocks", "4", "--workers", "2")

		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(out), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(HavePrefix("s=0 E=1 b=4 "))
		Expect(lines[1]).To(Equal(
			"s=4 E=1 b=4 hits:4 misses:5 evictions:3 miss-rate:0.5556"))
	})

	It("should record a summary per geometry", func() {
		path := writeTraceFile(referenceTrace)
		record := filepath.Join(GinkgoT().TempDir(), "sweep")

		_, _, err := execute("sweep", "-t", path,
			"--sets", "0-2", "--ways", "1,2", "--blocks", "4",
			"--record", record)
		Expect(err).NotTo(HaveOccurred())

		db, err := sql.Open("sqlite3", record+".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		var summaries int
		Expect(db.QueryRow(
			"SELECT COUNT(*) FROM "+tracing.SummaryTable,
		).Scan(&summaries)).To(Succeed())
		Expect(summaries).To(Equal(6))
	})

	It("should reject bad lists", func() {
		path := writeTraceFile(referenceTrace)

		_, _, err := execute("sweep", "-t", path, "--ways", "2-1")

		var configErr *sim.ConfigurationError
		Expect(errors.As(err, &configErr)).To(BeTrue())
		Expect(configErr.Field).To(Equal("ways"))
	})

	It("should require a trace", func() {
		_, _, err := execute("sweep")

		Expect(err).To(MatchError(ErrMissingTrace))
	})
})

var _ = Describe("csim transpose", func() {
	It("should score every registered function", func() {
		out, _, err := execute("transpose", "--rows", "32", "--cols", "32")

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(
			"baseline (Simple row-wise scan transpose): hits:868 misses:1180 evictions:1148"))
		Expect(out).To(ContainSubstring("submit (Transpose submission): "))
	})

	It("should emit a trace csim can replay", func() {
		emit := filepath.Join(GinkgoT().TempDir(), "submit.trace")

		out, _, err := execute("transpose", "--func", "submit", "--emit", emit)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("misses:284 "))

		replay, _, err := execute("-s", "5", "-E", "1", "-b", "5", "-t", emit)
		Expect(err).NotTo(HaveOccurred())
		Expect(replay).To(ContainSubstring("misses:284 "))
	})

	It("should reject unknown functions", func() {
		_, _, err := execute("transpose", "--func", "nope")

		var configErr *sim.ConfigurationError
		Expect(errors.As(err, &configErr)).To(BeTrue())
		Expect(configErr.Field).To(Equal("func"))
	})

	It("should need a function to emit", func() {
		_, _, err := execute("transpose", "--emit", "out.trace")

		Expect(err).To(MatchError(ErrEmitNeedsFunc))
	})
})

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sarchlab/csim/mem/trace"
	"github.com/sarchlab/csim/sim"
	"github.com/sarchlab/csim/transpose"
)

// ErrEmitNeedsFunc is returned when --emit is used without --func.
var ErrEmitNeedsFunc = errors.New("--emit needs a single function selected with --func")

type transposeOptions struct {
	rows     int
	cols     int
	funcName string
	emit     string
}

func newTransposeCmd(global *globalOptions) *cobra.Command {
	opts := transposeOptions{}

	transposeCmd := &cobra.Command{
		Use:   "transpose --rows <N> --cols <M>",
		Short: "Score matrix transpose functions on the reference cache.",
		Long: `transpose runs the registered transpose functions on an N x M ` +
			`matrix, checks their results and prints the number of hits, ` +
			`misses and evictions on a 1 KiB direct-mapped cache with 32 ` +
			`byte blocks (s=5, E=1, b=5).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTranspose(cmd, global, opts)
		},
	}

	flags := transposeCmd.Flags()
	flags.IntVar(&opts.rows, "rows", 32, "Number of rows of the source matrix.")
	flags.IntVar(&opts.cols, "cols", 32, "Number of columns of the source matrix.")
	flags.StringVar(&opts.funcName, "func", "",
		"Function to score. All registered functions when empty.")
	flags.StringVar(&opts.emit, "emit", "",
		"Write the trace of the selected function to this file.")

	return transposeCmd
}

func (o transposeOptions) functions() ([]transpose.Function, error) {
	if o.funcName == "" {
		if o.emit != "" {
			return nil, &sim.ConfigurationError{Field: "emit", Err: ErrEmitNeedsFunc}
		}

		return transpose.Functions(), nil
	}

	f, ok := transpose.Lookup(o.funcName)
	if !ok {
		return nil, &sim.ConfigurationError{
			Field: "func",
			Err:   fmt.Errorf("unknown transpose function %q", o.funcName),
		}
	}

	return []transpose.Function{f}, nil
}

func runTranspose(
	cmd *cobra.Command,
	global *globalOptions,
	opts transposeOptions,
) error {
	functions, err := opts.functions()
	if err != nil {
		return err
	}

	logger, err := newLogger(global.logLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	for _, f := range functions {
		eval, err := transpose.Evaluate(f.Transpose, opts.rows, opts.cols,
			transpose.ReferenceGeometry)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}

		logger.Debug("transpose evaluated",
			zap.String("func", f.Name),
			zap.Int("records", len(eval.Records)))

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n",
			f.Name, f.Description, eval.Stats)
		if err != nil {
			return err
		}

		if opts.emit != "" {
			if err := writeTrace(opts.emit, eval.Records); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeTrace(path string, records []trace.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return &trace.IOError{Path: path, Err: err}
	}
	defer file.Close()

	w := trace.NewWriter(file)
	if err := w.WriteAll(records); err != nil {
		return &trace.IOError{Path: path, Err: err}
	}

	if err := w.Flush(); err != nil {
		return &trace.IOError{Path: path, Err: err}
	}

	return file.Close()
}

package cmd

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sarchlab/csim/mem/trace"
	"github.com/sarchlab/csim/sim"
	"github.com/sarchlab/csim/sweep"
)

type sweepOptions struct {
	RunConfig

	traceFile string
	sets      string
	ways      string
	blocks    string
	workers   int
}

func (o sweepOptions) space() (sweep.Space, error) {
	setBits, err := parseList("sets", o.sets)
	if err != nil {
		return sweep.Space{}, err
	}

	numWays, err := parseList("ways", o.ways)
	if err != nil {
		return sweep.Space{}, err
	}

	blockBits, err := parseList("blocks", o.blocks)
	if err != nil {
		return sweep.Space{}, err
	}

	return sweep.Space{
		SetBits:   setBits,
		NumWays:   numWays,
		BlockBits: blockBits,
	}, nil
}

func parseList(field, text string) ([]int, error) {
	values, err := sweep.ParseIntList(text)
	if err != nil {
		return nil, &sim.ConfigurationError{Field: field, Err: err}
	}

	return values, nil
}

func newSweepCmd(global *globalOptions) *cobra.Command {
	opts := sweepOptions{}

	sweepCmd := &cobra.Command{
		Use:   "sweep -t <tracefile> --sets 0-4 --ways 1,2,4 --blocks 4,5",
		Short: "Simulate one trace on many cache geometries.",
		Long: `sweep simulates the trace on every combination of the given set ` +
			`bits, lines per set and block bits, and prints one line per ` +
			`geometry ordered by s, E and b. Lists accept values and ranges, ` +
			`e.g. "0-3,6".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd, global, opts)
		},
	}

	flags := sweepCmd.Flags()
	flags.StringVarP(&opts.traceFile, "trace", "t", "", "Trace file to replay.")
	flags.StringVar(&opts.sets, "sets", "0-4", "Set index bits to explore.")
	flags.StringVar(&opts.ways, "ways", "1,2,4", "Lines per set to explore.")
	flags.StringVar(&opts.blocks, "blocks", "4", "Block bits to explore.")
	flags.IntVar(&opts.workers, "workers", runtime.GOMAXPROCS(0),
		"Number of geometries simulated in parallel.")
	addRunFlags(sweepCmd, &opts.RunConfig)

	return sweepCmd
}

func runSweep(
	cmd *cobra.Command,
	global *globalOptions,
	opts sweepOptions,
) (err error) {
	if opts.traceFile == "" {
		return &sim.ConfigurationError{Field: "t", Err: ErrMissingTrace}
	}

	space, err := opts.space()
	if err != nil {
		return err
	}

	if err := opts.RunConfig.Validate(); err != nil {
		return err
	}

	reader, err := trace.Open(opts.traceFile)
	if err != nil {
		return err
	}

	records, err := trace.ReadAll(reader)
	reader.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", opts.traceFile, err)
	}

	sess, err := startSession(cmd, global.logLevel, opts.RunConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			sess.discardRecording()
		}

		sess.close()
	}()

	geometries := space.Geometries()

	var (
		simulatorsLock sync.Mutex
		simulators     []*sim.Simulator
	)

	runner := sweep.MakeRunner().
		WithWorkers(opts.workers).
		WithLogger(sess.logger).
		WithSimulatorCallback(func(s *sim.Simulator) {
			sess.watch(s)

			simulatorsLock.Lock()
			defer simulatorsLock.Unlock()

			simulators = append(simulators, s)
		})

	if sess.monitor != nil {
		bar := sess.monitor.CreateProgressBar("sweep", uint64(len(geometries)))
		defer sess.monitor.CompleteProgressBar(bar)

		runner = runner.WithProgressTracker(bar)
	}

	results, err := runner.Run(cmd.Context(), records, geometries)
	if err != nil {
		return err
	}

	sort.Slice(simulators, func(i, j int) bool {
		return simulators[i].Name() < simulators[j].Name()
	})

	for _, s := range simulators {
		sess.recordSummary(s)
	}

	sess.logger.Info("sweep finished",
		zap.Int("geometries", len(results)),
		zap.Int("records", len(records)))

	for _, r := range results {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), r); err != nil {
			return err
		}
	}

	return nil
}

// Package cmd provides the command-line interface of csim.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/sarchlab/csim/mem/trace"
	"github.com/sarchlab/csim/sim"
	"github.com/sarchlab/csim/tracing"
)

type globalOptions struct {
	logLevel string
}

// Execute loads the optional .env file, runs the command line and exits.
func Execute() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "cannot load .env: %v\n", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func newRootCmd() *cobra.Command {
	global := &globalOptions{}
	cfg := Config{}

	rootCmd := &cobra.Command{
		Use:   "csim -s <s> -E <E> -b <b> -t <tracefile>",
		Short: "Simulate a set-associative cache on a memory trace.",
		Long: `csim replays a memory trace on a cache with 2^s sets of E lines ` +
			`each and 2^b byte blocks, using LRU replacement. It prints the ` +
			`number of hits, misses and evictions.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulation(cmd, global, cfg)
		},
	}

	rootCmd.PersistentFlags().StringVar(&global.logLevel, "log-level",
		envString(envLogLevel, "warn"),
		"Log level: debug, info, warn or error.")

	flags := rootCmd.Flags()
	flags.IntVarP(&cfg.SetBits, "set-bits", "s", 0,
		"Number of set index bits (2^s sets).")
	flags.IntVarP(&cfg.NumWays, "ways", "E", 0,
		"Number of lines per set (associativity).")
	flags.IntVarP(&cfg.BlockBits, "block-bits", "b", 0,
		"Number of block bits (2^b bytes per block).")
	flags.StringVarP(&cfg.TraceFile, "trace", "t", "",
		"Trace file to replay.")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false,
		"Print the outcome of every trace record.")
	addRunFlags(rootCmd, &cfg.RunConfig)

	rootCmd.AddCommand(newSweepCmd(global), newTransposeCmd(global))

	return rootCmd
}

func addRunFlags(cmd *cobra.Command, cfg *RunConfig) {
	flags := cmd.Flags()
	flags.StringVar(&cfg.Record, "record", envString(envRecord, ""),
		"Record results into <name>.sqlite3.")
	flags.BoolVar(&cfg.Monitor, "monitor", false,
		"Serve the progress of the simulation over HTTP.")
	flags.IntVar(&cfg.MonitorPort, "monitor-port", envInt(envMonitorPort, 0),
		"Port of the monitor. 0 picks a free port.")
	flags.BoolVar(&cfg.OpenMonitor, "open-monitor", false,
		"Start the monitor and open it in a browser.")
}

func runSimulation(
	cmd *cobra.Command,
	global *globalOptions,
	cfg Config,
) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}

	reader, err := trace.Open(cfg.TraceFile)
	if err != nil {
		return err
	}
	defer reader.Close()

	sess, err := startSession(cmd, global.logLevel, cfg.RunConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			sess.discardRecording()
		}

		sess.close()
	}()

	simulator, err := sim.MakeBuilder().
		WithGeometry(cfg.Geometry()).
		WithLogger(sess.logger).
		Build()
	if err != nil {
		return err
	}

	sess.watch(simulator)
	sess.traceSteps(simulator)

	var verbose *tracing.VerboseTracer
	if cfg.Verbose {
		verbose = tracing.NewVerboseTracer(cmd.OutOrStdout())
		simulator.AcceptHook(verbose)
	}

	stats, err := simulator.Run(reader)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.TraceFile, err)
	}

	if verbose != nil && verbose.Err() != nil {
		return verbose.Err()
	}

	sess.recordSummary(simulator)
	sess.logger.Info("simulation finished",
		zap.String("name", simulator.Name()),
		zap.Int("lines", reader.Line()),
		zap.Stringer("geometry", simulator.Geometry()),
		zap.Stringer("stats", stats))

	_, err = fmt.Fprintln(cmd.OutOrStdout(), stats)

	return err
}

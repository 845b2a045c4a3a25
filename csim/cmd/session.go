package cmd

import (
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sarchlab/csim/datarecording"
	"github.com/sarchlab/csim/monitoring"
	"github.com/sarchlab/csim/sim"
	"github.com/sarchlab/csim/tracing"
)

// session owns the logger, recorder and monitor of one command run.
type session struct {
	logger   *zap.Logger
	recorder datarecording.DataRecorder
	tracer   *tracing.AccessTracer
	monitor  *monitoring.Monitor
}

func startSession(
	cmd *cobra.Command,
	logLevel string,
	cfg RunConfig,
) (*session, error) {
	logger, err := newLogger(logLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	s := &session{logger: logger}

	if cfg.Record != "" {
		s.recorder, err = datarecording.New(cfg.Record, logger)
		if err != nil {
			s.close()
			return nil, &sim.ConfigurationError{Field: "record", Err: err}
		}

		s.tracer = tracing.NewAccessTracer(s.recorder)
	}

	if cfg.Monitor || cfg.OpenMonitor {
		s.monitor = monitoring.NewMonitor().
			WithLogger(logger).
			WithPortNumber(cfg.MonitorPort)

		url, err := s.monitor.StartServer()
		if err != nil {
			s.close()
			return nil, err
		}

		if cfg.OpenMonitor {
			if err := browser.OpenURL(url); err != nil {
				logger.Warn("cannot open browser", zap.Error(err))
			}
		}
	}

	return s, nil
}

// watch makes a simulator visible in the monitor. It is safe to call
// concurrently.
func (s *session) watch(simulator *sim.Simulator) {
	if s.monitor != nil {
		s.monitor.RegisterSimulator(simulator)
	}
}

// traceSteps records every replacement step of the simulator. Only one
// simulator may run at a time when steps are traced.
func (s *session) traceSteps(simulator *sim.Simulator) {
	if s.tracer != nil {
		simulator.AcceptHook(s.tracer)
	}
}

func (s *session) recordSummary(simulator *sim.Simulator) {
	if s.tracer != nil {
		s.tracer.RecordSummary(simulator.Snapshot())
	}
}

// discardRecording removes what a failed run recorded. Later calls to
// recordSummary and close leave the file alone.
func (s *session) discardRecording() {
	if s.recorder == nil {
		return
	}

	s.recorder.Discard()
	s.recorder = nil
	s.tracer = nil
}

func (s *session) close() {
	if s.recorder != nil {
		s.recorder.Close()
	}

	if s.monitor != nil {
		s.monitor.StopServer()
	}

	_ = s.logger.Sync()
}

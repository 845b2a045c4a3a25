// Package monitoring turns a running simulation into a small web server that
// reports its progress and resource usage.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"

	"github.com/sarchlab/csim/monitoring/web"
	"github.com/sarchlab/csim/sim"
)

// Monitor exposes the state of registered simulators over HTTP.
type Monitor struct {
	portNumber int
	logger     *zap.Logger

	server   *http.Server
	listener net.Listener

	simulatorsLock sync.Mutex
	simulators     []*sim.Simulator

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		logger: zap.NewNop(),
	}
}

// WithPortNumber sets the port number of the monitor. Port 0 and ports
// below 1000 select a random free port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn("monitor port not allowed, using a random port",
			zap.Int("port", portNumber))

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger of the monitor.
func (m *Monitor) WithLogger(logger *zap.Logger) *Monitor {
	m.logger = logger
	return m
}

// RegisterSimulator registers a simulator to be monitored.
func (m *Monitor) RegisterSimulator(s *sim.Simulator) {
	m.simulatorsLock.Lock()
	defer m.simulatorsLock.Unlock()

	m.simulators = append(m.simulators, s)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the routes served by the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/list_simulators", m.listSimulators)
	r.HandleFunc("/api/simulator/{name}", m.simulatorDetails)
	r.HandleFunc("/api/stats/{name}", m.simulatorStats)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor in the background and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", m.portNumber))
	if err != nil {
		return "", fmt.Errorf("cannot start monitor: %w", err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	m.logger.Info("monitoring simulation", zap.String("url", url))

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitor stopped", zap.Error(err))
		}
	}()

	return url, nil
}

// StopServer shuts the server down if it is running.
func (m *Monitor) StopServer() {
	if m.server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := m.server.Shutdown(ctx); err != nil {
		m.logger.Warn("monitor shutdown", zap.Error(err))
	}

	m.server = nil
}

func (m *Monitor) listSimulators(w http.ResponseWriter, _ *http.Request) {
	m.simulatorsLock.Lock()
	names := make([]string, 0, len(m.simulators))
	for _, s := range m.simulators {
		names = append(names, s.Name())
	}
	m.simulatorsLock.Unlock()

	m.writeJSON(w, names)
}

func (m *Monitor) simulatorDetails(w http.ResponseWriter, r *http.Request) {
	s := m.findSimulatorOr404(w, mux.Vars(r)["name"])
	if s == nil {
		return
	}

	snapshot := s.Snapshot()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(2)

	if err := serializer.Serialize(w); err != nil {
		m.logger.Error("cannot serialize simulator", zap.Error(err))
	}
}

func (m *Monitor) simulatorStats(w http.ResponseWriter, r *http.Request) {
	s := m.findSimulatorOr404(w, mux.Vars(r)["name"])
	if s == nil {
		return
	}

	m.writeJSON(w, s.Stats())
}

func (m *Monitor) findSimulatorOr404(
	w http.ResponseWriter,
	name string,
) *sim.Simulator {
	m.simulatorsLock.Lock()
	defer m.simulatorsLock.Unlock()

	for _, s := range m.simulators {
		if s.Name() == name {
			return s
		}
	}

	http.Error(w, "Simulator not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	views := make([]progressBarView, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		views = append(views, b.view())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, views)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.writeError(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.writeError(w, err)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		m.writeError(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		m.writeError(w, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.writeError(w, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(data); err != nil {
		m.logger.Warn("cannot write response", zap.Error(err))
	}
}

func (m *Monitor) writeError(w http.ResponseWriter, err error) {
	m.logger.Error("monitor request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

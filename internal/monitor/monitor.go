// Package monitor samples the health of a running simulation: progress,
// tick rate and how far the writers are behind.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/missionsim/internal/influx"
	"github.com/OCAP2/missionsim/internal/logging"
	"github.com/OCAP2/missionsim/internal/mission"
	"github.com/OCAP2/missionsim/internal/model"
	"github.com/OCAP2/missionsim/internal/worker"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the monitor service. DB, Influx
// and Metrics are optional sample destinations.
type Dependencies struct {
	DB             *gorm.DB
	Influx         *influx.Manager
	LogManager     *logging.SlogManager
	MissionContext *mission.Context
	WorkerManager  *worker.Manager
	Metrics        *Metrics
	StatusDir      string
	Interval       time.Duration
}

// Service manages status monitoring
type Service struct {
	deps Dependencies

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}

	lastTick   int
	lastSample time.Time
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	return &Service{
		deps:     deps,
		lastTick: -1,
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Sample takes one performance sample. The tick rate is measured against
// the previous sample.
func (s *Service) Sample() model.SimPerformance {
	now := time.Now()
	tick, _ := s.deps.MissionContext.LastTick()

	perf := model.SimPerformance{
		Time: now,
		Tick: tick,
	}
	if run := s.deps.MissionContext.GetRun(); run != nil {
		perf.RunID = run.ID
	}
	if wm := s.deps.WorkerManager; wm != nil {
		perf.BufferLengths = wm.BufferLengths()
		perf.WriteQueueLengths = wm.WriteQueueLengths()
		perf.LastWriteDurationMs = float32(wm.LastWriteDuration().Microseconds()) / 1000
	}

	s.mu.Lock()
	if !s.lastSample.IsZero() && s.lastTick >= 0 && tick >= s.lastTick {
		if elapsed := now.Sub(s.lastSample).Seconds(); elapsed > 0 {
			perf.TicksPerSecond = float64(tick-s.lastTick) / elapsed
		}
	}
	s.lastTick = tick
	s.lastSample = now
	s.mu.Unlock()

	return perf
}

// Status renders a sample as the lines of the status file.
func Status(perf model.SimPerformance) []string {
	var out []string
	for _, v := range []any{perf.BufferLengths, perf.WriteQueueLengths, perf.LastWriteDurationMs} {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			b = fmt.Appendf(nil, `{"error": %q}`, err.Error())
		}
		out = append(out, string(b))
	}
	return out
}

// Record logs a sample and sends it to every configured destination. It
// may be called before a run has begun.
func (s *Service) Record(perf model.SimPerformance) error {
	var runName string
	if run := s.deps.MissionContext.GetRun(); run != nil {
		runName = run.Name
	}
	if s.deps.LogManager != nil {
		s.deps.LogManager.Logger().Info("simulation progress",
			"run", runName,
			"tick", perf.Tick,
			"progress", fmt.Sprintf("%.1f%%", s.deps.MissionContext.Progress()*100),
			"ticksPerSecond", perf.TicksPerSecond,
			"bufferedEvents", perf.BufferLengths.Events,
			"bufferedTimeline", perf.BufferLengths.Timeline,
		)
	}

	s.deps.Metrics.Observe(perf, s.deps.MissionContext.Progress())

	if s.deps.StatusDir != "" {
		if err := s.writeStatusFile(Status(perf)); err != nil {
			return err
		}
	}
	if s.deps.DB != nil && perf.RunID != 0 {
		if err := s.deps.DB.Create(&perf).Error; err != nil {
			return fmt.Errorf("error writing perf sample: %w", err)
		}
	}
	if s.deps.Influx != nil {
		if err := s.deps.Influx.WritePoint(influx.BucketPerformance, influx.PerformancePoint(runName, perf)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) writeStatusFile(lines []string) error {
	var b []byte
	for _, line := range lines {
		b = append(b, line...)
		b = append(b, '\n')
	}
	if err := os.WriteFile(filepath.Join(s.deps.StatusDir, "status.txt"), b, 0644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, ok := s.deps.MissionContext.LastTick(); !ok {
					continue
				}
				if err := s.Record(s.Sample()); err != nil && s.deps.LogManager != nil {
					s.deps.LogManager.WriteLog("monitor", err.Error(), "ERROR")
				}
			}
		}
	}()
	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}

// Package ndjson writes the timeline and the event stream as newline
// delimited JSON, one object per line.
package ndjson

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/OCAP2/missionsim/internal/config"
	"github.com/OCAP2/missionsim/pkg/core"
)

// ErrNotOpen is returned when records arrive outside of a run.
var ErrNotOpen = errors.New("ndjson: no run in progress")

// stream is one output file with its encoder stack.
type stream struct {
	path string
	file *os.File
	gz   *gzip.Writer
	buf  *bufio.Writer
	enc  *json.Encoder
	n    int
}

func openStream(path string, compress bool) (*stream, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	s := &stream{path: path, file: f}
	var w io.Writer = f
	if compress {
		s.gz = gzip.NewWriter(f)
		w = s.gz
	}
	s.buf = bufio.NewWriter(w)
	s.enc = json.NewEncoder(s.buf)
	return s, nil
}

func (s *stream) write(v any) error {
	if err := s.enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	s.n++
	return nil
}

func (s *stream) close() error {
	var errs []error
	if err := s.buf.Flush(); err != nil {
		errs = append(errs, err)
	}
	if s.gz != nil {
		if err := s.gz.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to close %s: %w", s.path, err)
	}
	return nil
}

// Backend writes timeline.ndjson and events.ndjson.
type Backend struct {
	cfg config.OutputConfig

	mu       sync.Mutex
	timeline *stream
	events   *stream
	nextID   uint
}

// New creates a backend. Paths are resolved when a run starts.
func New(cfg config.OutputConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init checks that both output paths are set.
func (b *Backend) Init() error {
	if b.cfg.TimelinePath == "" || b.cfg.EventPath == "" {
		return errors.New("ndjson: timeline and event paths are required")
	}
	if b.cfg.TimelinePath == b.cfg.EventPath {
		return errors.New("ndjson: timeline and event paths must differ")
	}
	return nil
}

// Close finishes any run still open.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeStreams()
}

// Paths returns the files written, with the .gz suffix when compressing.
func (b *Backend) Paths() (timeline, events string) {
	return b.resolve(b.cfg.TimelinePath), b.resolve(b.cfg.EventPath)
}

func (b *Backend) resolve(path string) string {
	if b.cfg.Compress && !strings.HasSuffix(path, ".gz") {
		return path + ".gz"
	}
	return path
}

// StartRun truncates both files.
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.closeStreams(); err != nil {
		return err
	}

	timelinePath, eventPath := b.Paths()
	timeline, err := openStream(timelinePath, b.cfg.Compress)
	if err != nil {
		return err
	}
	events, err := openStream(eventPath, b.cfg.Compress)
	if err != nil {
		_ = timeline.close()
		return err
	}
	b.timeline = timeline
	b.events = events
	b.nextID = 0
	return nil
}

// EndRun flushes and closes both files.
func (b *Backend) EndRun(lastTick int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timeline == nil {
		return ErrNotOpen
	}
	return b.closeStreams()
}

// AddEntity only numbers the entity; the files carry object ids.
func (b *Backend) AddEntity(e *core.Entity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timeline == nil {
		return ErrNotOpen
	}
	b.nextID++
	e.ID = b.nextID
	return nil
}

func (b *Backend) RecordTimeline(r *core.TimelineRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timeline == nil {
		return ErrNotOpen
	}
	return b.timeline.write(r)
}

func (b *Backend) RecordDetection(e *core.DetectionEvent) error {
	return b.writeEvent(e)
}

func (b *Backend) RecordDetonation(e *core.DetonationEvent) error {
	return b.writeEvent(e)
}

func (b *Backend) writeEvent(v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.events == nil {
		return ErrNotOpen
	}
	return b.events.write(v)
}

// Lines reports the number of lines written in the current run.
func (b *Backend) Lines() (timeline, events int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timeline != nil {
		timeline = b.timeline.n
	}
	if b.events != nil {
		events = b.events.n
	}
	return timeline, events
}

func (b *Backend) closeStreams() error {
	var errs []error
	if b.timeline != nil {
		errs = append(errs, b.timeline.close())
		b.timeline = nil
	}
	if b.events != nil {
		errs = append(errs, b.events.close())
		b.events = nil
	}
	return errors.Join(errs...)
}

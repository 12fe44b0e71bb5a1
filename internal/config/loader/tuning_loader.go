// Package loader reads the hot-reloadable tunables file.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"optdesk/internal/domain"
	"optdesk/internal/logger"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// TuningSnapshot is an immutable view of the loaded tunables.
type TuningSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Tuning   domain.Tuning
}

// ChangeListener is called after every successful reload.
type ChangeListener func(TuningSnapshot)

// TuningLoader owns the tunables file and notifies listeners on change.
type TuningLoader struct {
	path string

	mu        sync.RWMutex
	snapshot  TuningSnapshot
	listeners []ChangeListener
}

type tuningFile struct {
	StrikeOffsets      map[string]int      `yaml:"strike_offsets"`
	TrailingThresholds map[string]float64  `yaml:"trailing_thresholds"`
	Auto               domain.AutoTuning   `yaml:"auto"`
	Signal             domain.SignalTuning `yaml:"signal"`
}

// NewTuningLoader loads path once. A missing file yields the defaults so a
// fresh deployment starts without one.
func NewTuningLoader(path string) (*TuningLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("tuning loader requires path")
	}
	l := &TuningLoader{path: filepath.Clean(path)}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// DecodeTuning parses a tunables document over the defaults. Unknown keys
// are rejected.
func DecodeTuning(r io.Reader) (domain.Tuning, error) {
	def := domain.DefaultTuning()
	f := tuningFile{Auto: def.Auto, Signal: def.Signal}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return domain.Tuning{}, fmt.Errorf("decode tuning: %w", err)
	}
	out := domain.Tuning{
		StrikeOffsets:      def.StrikeOffsets,
		TrailingThresholds: def.TrailingThresholds,
		Auto:               f.Auto,
		Signal:             f.Signal,
	}
	for raw, v := range f.StrikeOffsets {
		mode, err := domain.ParseStrategyMode(raw)
		if err != nil {
			return domain.Tuning{}, fmt.Errorf("strike_offsets: %w", err)
		}
		out.StrikeOffsets[mode] = v
	}
	for raw, v := range f.TrailingThresholds {
		mode, err := domain.ParseStrategyMode(raw)
		if err != nil {
			return domain.Tuning{}, fmt.Errorf("trailing_thresholds: %w", err)
		}
		out.TrailingThresholds[mode] = v
	}
	if err := out.Validate(); err != nil {
		return domain.Tuning{}, err
	}
	return out, nil
}

// Reload re-reads the file. On error the previous snapshot stays active.
func (l *TuningLoader) Reload() error {
	data, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warnf("tuning file %s not found, using defaults", l.path)
		data = nil
	case err != nil:
		return fmt.Errorf("read tuning file failed: %w", err)
	}
	t, err := DecodeTuning(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(l.path), err)
	}
	l.mu.Lock()
	l.snapshot = TuningSnapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Tuning:   t,
	}
	version := l.snapshot.Version
	l.mu.Unlock()
	logger.Infof("tuning loaded from %s (version %d)", filepath.Base(l.path), version)
	return nil
}

// Snapshot returns a deep copy of the current tunables.
func (l *TuningLoader) Snapshot() TuningSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Subscribe registers fn for future reloads.
func (l *TuningLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// Watch follows the file until ctx is done. The parent directory is watched
// so editors that replace the file by rename are picked up.
func (l *TuningLoader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create tuning watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(l.path), err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != l.path || evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := l.Reload(); err != nil {
				logger.Errorf("tuning reload failed (%s): %v", evt.Name, err)
				continue
			}
			l.notify()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("tuning watcher error: %v", err)
		}
	}
}

func (l *TuningLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("tuning listener panic: %v", r)
				}
			}()
			fn(cloneSnapshot(snap))
		}()
	}
}

func cloneSnapshot(s TuningSnapshot) TuningSnapshot {
	out := s
	out.Tuning.StrikeOffsets = make(map[domain.StrategyMode]int, len(s.Tuning.StrikeOffsets))
	for k, v := range s.Tuning.StrikeOffsets {
		out.Tuning.StrikeOffsets[k] = v
	}
	out.Tuning.TrailingThresholds = make(map[domain.StrategyMode]float64, len(s.Tuning.TrailingThresholds))
	for k, v := range s.Tuning.TrailingThresholds {
		out.Tuning.TrailingThresholds[k] = v
	}
	return out
}

package service

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	// Timestamps older than this are pruned from activity rings. Has to
	// exceed the largest window RecentEvents is called with.
	activityRetention = 10 * time.Minute
)

// FileActivitySource counts filesystem events under a watched directory as a
// proxy for input activity. Saves, builds and downloads all register.
type FileActivitySource struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu     sync.Mutex
	events []time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

var _ domain.ActivitySource = (*FileActivitySource)(nil)

func NewFileActivitySource(dir string, logger *zap.Logger) (*FileActivitySource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	s := &FileActivitySource{
		watcher: watcher,
		logger:  logger,
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()

	logger.Info("file activity source started", zap.String("dir", dir))
	return s, nil
}

func (s *FileActivitySource) run() {
	defer s.wg.Done()
	for {
		select {
		case _, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.record(time.Now())
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Debug("watcher error", zap.Error(err))
		case <-s.done:
			return
		}
	}
}

func (s *FileActivitySource) record(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, t)
	s.prune(t)
}

// RecentEvents reports how many events landed inside the window.
func (s *FileActivitySource) RecentEvents(window time.Duration) (int, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(now)
	return countAfter(s.events, now.Add(-window)), nil
}

func (s *FileActivitySource) prune(now time.Time) {
	cutoff := now.Add(-activityRetention)
	kept := s.events[:0]
	for _, t := range s.events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.events = kept
}

func (s *FileActivitySource) Close() error {
	close(s.done)
	err := s.watcher.Close()
	s.wg.Wait()
	return err
}

// ManualActivitySource counts explicitly reported activity, typically pumped
// by the ingress handler when no directory is being watched.
type ManualActivitySource struct {
	mu     sync.Mutex
	events []time.Time
}

var _ domain.ActivitySource = (*ManualActivitySource)(nil)

func NewManualActivitySource() *ManualActivitySource {
	return &ManualActivitySource{}
}

// Record registers one activity event at the current time.
func (s *ManualActivitySource) Record() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, now)

	cutoff := now.Add(-activityRetention)
	kept := s.events[:0]
	for _, t := range s.events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.events = kept
}

func (s *ManualActivitySource) RecentEvents(window time.Duration) (int, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return countAfter(s.events, now.Add(-window)), nil
}

func countAfter(events []time.Time, cutoff time.Time) int {
	n := 0
	for _, t := range events {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// ExecAppSource shells out to a configured probe command that prints the
// frontmost application name, e.g. an osascript one-liner on macOS.
type ExecAppSource struct {
	command string
}

var _ domain.AppSource = (*ExecAppSource)(nil)

func NewExecAppSource(command string) *ExecAppSource {
	return &ExecAppSource{command: command}
}

func (s *ExecAppSource) ActiveApplication(ctx context.Context) (string, error) {
	if s.command == "" {
		return "", fmt.Errorf("no probe command: %w", domain.ErrSignalUnavailable)
	}
	out, err := exec.CommandContext(ctx, "sh", "-c", s.command).Output()
	if err != nil {
		return "", fmt.Errorf("app probe: %v: %w", err, domain.ErrSignalUnavailable)
	}
	name := strings.TrimSpace(string(out))
	if name == "" {
		return "", fmt.Errorf("app probe returned nothing: %w", domain.ErrSignalUnavailable)
	}
	return name, nil
}

package service

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultAttentionInterval = 2 * time.Second

	// Focus formula weights and shaping.
	activityWindow     = 120 * time.Second
	activitySaturation = 20.0
	appWeightShare     = 0.7
	activityShare      = 0.3

	focusAppWeight   = 0.9
	casualAppWeight  = 0.2
	unknownAppWeight = 0.5

	// App switching above this rate (per minute) erodes focus.
	switchRateAllowance = 2.0
	maxSwitchPenalty    = 0.5

	// Idle shaping: a short pause is free, a long absence zeroes focus, and
	// the stretch in between is penalized gradually.
	idleGrace       = 30 * time.Second
	idleCutoff      = 330 * time.Second
	idlePenaltyRamp = 300.0
	maxIdlePenalty  = 0.8

	// Confidence drop per unavailable signal.
	signalPenalty = 0.4
)

// AttentionConfig tunes the monitor. Zero values fall back to defaults.
type AttentionConfig struct {
	Interval   time.Duration
	FocusApps  []string
	CasualApps []string
}

// AttentionMonitor estimates user focus on a fixed cadence and serves the
// latest snapshot without blocking. Signal sources may be nil or failing;
// the monitor substitutes neutral defaults and keeps sampling.
type AttentionMonitor struct {
	activity domain.ActivitySource
	apps     domain.AppSource
	logger   *zap.Logger

	focusApps  map[string]bool
	casualApps map[string]bool
	interval   time.Duration

	mu       sync.RWMutex
	snapshot domain.AttentionState

	// sampling state, touched only by the sampling goroutine
	lastApp      string
	switchTimes  []time.Time
	lastActiveAt time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

var _ domain.AttentionSampler = (*AttentionMonitor)(nil)

func NewAttentionMonitor(activity domain.ActivitySource, apps domain.AppSource, cfg AttentionConfig, logger *zap.Logger) *AttentionMonitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultAttentionInterval
	}
	now := time.Now()
	return &AttentionMonitor{
		activity:   activity,
		apps:       apps,
		logger:     logger,
		focusApps:  appSet(cfg.FocusApps),
		casualApps: appSet(cfg.CasualApps),
		interval:   interval,
		// Until the first sample lands, report neutral focus with zero
		// confidence so readers can tell nothing has been measured yet.
		snapshot: domain.AttentionState{
			FocusLevel: unknownAppWeight,
			Confidence: 0,
			SampledAt:  now,
		},
		lastActiveAt: now,
		stopCh:       make(chan struct{}),
	}
}

func appSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			set[n] = true
		}
	}
	return set
}

// Sample returns the latest snapshot. It never blocks on signal probing.
func (m *AttentionMonitor) Sample() domain.AttentionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

func (m *AttentionMonitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.logger.Info("attention monitor started", zap.Duration("interval", m.interval))

		m.refresh()
		for {
			select {
			case <-ticker.C:
				m.refresh()
			case <-m.stopCh:
				m.logger.Info("attention monitor stopped")
				return
			}
		}
	}()
}

func (m *AttentionMonitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *AttentionMonitor) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()

	snapshot := m.computeSnapshot(ctx, time.Now())

	m.mu.Lock()
	m.snapshot = snapshot
	m.mu.Unlock()
}

func (m *AttentionMonitor) computeSnapshot(ctx context.Context, now time.Time) domain.AttentionState {
	confidence := 1.0

	events, activityOK := m.probeActivity(now)
	if !activityOK {
		confidence -= signalPenalty
	}

	app, appWeight, appOK := m.probeApp(ctx, now)
	if !appOK {
		confidence -= signalPenalty
	}

	focus := appWeightShare*appWeight + activityShare*math.Min(1, float64(events)/activitySaturation)

	switchRate := m.switchesPerMinute(now)
	if switchRate > switchRateAllowance {
		focus -= math.Min(maxSwitchPenalty, (switchRate-switchRateAllowance)/10)
	}

	var idle time.Duration
	if activityOK {
		idle = now.Sub(m.lastActiveAt)
	}
	switch {
	case idle >= idleCutoff:
		focus = 0
	case idle > idleGrace:
		focus -= math.Min(maxIdlePenalty, (idle-idleGrace).Seconds()/idlePenaltyRamp)
	}

	return domain.AttentionState{
		FocusLevel:          clamp01(focus),
		ActiveApplication:   app,
		IdleSeconds:         idle.Seconds(),
		RecentActivityCount: events,
		AppSwitchRate:       switchRate,
		Confidence:          confidence,
		SampledAt:           now,
	}
}

// probeActivity reads the event count for the focus window and refreshes the
// idle anchor when anything happened since the last tick. A nil or failing
// source reports zero events and not-OK.
func (m *AttentionMonitor) probeActivity(now time.Time) (int, bool) {
	if m.activity == nil {
		return 0, false
	}
	events, err := m.activity.RecentEvents(activityWindow)
	if err != nil {
		m.logger.Debug("activity signal unavailable", zap.Error(err))
		return 0, false
	}
	if recent, err := m.activity.RecentEvents(m.interval + time.Second); err == nil && recent > 0 {
		m.lastActiveAt = now
	}
	return events, true
}

func (m *AttentionMonitor) probeApp(ctx context.Context, now time.Time) (string, float64, bool) {
	if m.apps == nil {
		return "", unknownAppWeight, false
	}
	app, err := m.apps.ActiveApplication(ctx)
	if err != nil {
		m.logger.Debug("app signal unavailable", zap.Error(err))
		return "", unknownAppWeight, false
	}
	if m.lastApp != "" && app != m.lastApp {
		m.switchTimes = append(m.switchTimes, now)
	}
	m.lastApp = app
	return app, m.classifyApp(app), true
}

func (m *AttentionMonitor) classifyApp(app string) float64 {
	name := strings.ToLower(strings.TrimSpace(app))
	if name == "" {
		return unknownAppWeight
	}
	if m.matchApp(m.focusApps, name) {
		return focusAppWeight
	}
	if m.matchApp(m.casualApps, name) {
		return casualAppWeight
	}
	return unknownAppWeight
}

func (m *AttentionMonitor) matchApp(set map[string]bool, name string) bool {
	if set[name] {
		return true
	}
	for entry := range set {
		if strings.Contains(name, entry) {
			return true
		}
	}
	return false
}

func (m *AttentionMonitor) switchesPerMinute(now time.Time) float64 {
	cutoff := now.Add(-time.Minute)
	kept := m.switchTimes[:0]
	for _, t := range m.switchTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.switchTimes = kept
	return float64(len(kept))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

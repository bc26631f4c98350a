package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker tracks progress of long-running operations such as a
// batch of invoice files being extracted.
type ProgressTracker struct {
	logger      Logger
	operation   string
	total       int64
	current     int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	mutex       sync.RWMutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation   string        `json:"operation"`
	Total       int64         `json:"total"`
	LogInterval time.Duration `json:"log_interval"`
	Logger      Logger        `json:"-"`
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	if config.Logger == nil {
		config.Logger = GetGlobalLogger()
	}
	if config.LogInterval == 0 {
		config.LogInterval = 2 * time.Second
	}

	tracker := &ProgressTracker{
		logger:      config.Logger.WithComponent("progress"),
		operation:   config.Operation,
		total:       config.Total,
		startTime:   time.Now(),
		lastLogTime: time.Now(),
		logInterval: config.LogInterval,
	}

	tracker.logger.WithFields(Fields{
		"operation": config.Operation,
		"total":     config.Total,
	}).Debug("Starting operation")

	return tracker
}

// Increment increments the progress counter by 1
func (p *ProgressTracker) Increment() {
	p.Add(1)
}

// Add increments the progress counter by the given amount
func (p *ProgressTracker) Add(delta int64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.current += delta
	now := time.Now()

	if now.Sub(p.lastLogTime) >= p.logInterval {
		p.logProgress(now)
		p.lastLogTime = now
	}
}

// Complete marks the operation as complete and logs final statistics
func (p *ProgressTracker) Complete() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	duration := time.Since(p.startTime)

	p.logger.WithFields(Fields{
		"operation": p.operation,
		"total":     p.total,
		"processed": p.current,
		"duration":  duration.String(),
		"rate":      fmt.Sprintf("%.2f/sec", rate(p.current, duration)),
	}).Info("Operation completed")
}

// GetStats returns current progress statistics
func (p *ProgressTracker) GetStats() ProgressStats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	duration := time.Since(p.startTime)
	r := rate(p.current, duration)

	var percentage float64
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100
	}

	var eta time.Duration
	if p.total > 0 && p.current > 0 && r > 0 {
		remaining := p.total - p.current
		eta = time.Duration(float64(remaining)/r) * time.Second
	}

	return ProgressStats{
		Operation:  p.operation,
		Total:      p.total,
		Current:    p.current,
		Percentage: percentage,
		Duration:   duration,
		Rate:       r,
		ETA:        eta,
	}
}

func (p *ProgressTracker) logProgress(now time.Time) {
	duration := now.Sub(p.startTime)

	fields := Fields{
		"operation": p.operation,
		"processed": p.current,
		"rate":      fmt.Sprintf("%.2f/sec", rate(p.current, duration)),
	}
	if p.total > 0 {
		fields["total"] = p.total
		fields["percentage"] = fmt.Sprintf("%.1f%%", float64(p.current)/float64(p.total)*100)
	}

	p.logger.WithFields(fields).Info("Progress update")
}

func rate(n int64, d time.Duration) float64 {
	if d.Seconds() <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

// ProgressStats contains progress statistics
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Total      int64         `json:"total"`
	Current    int64         `json:"current"`
	Percentage float64       `json:"percentage"`
	Duration   time.Duration `json:"duration"`
	Rate       float64       `json:"rate"`
	ETA        time.Duration `json:"eta,omitempty"`
}

// String returns a human-readable representation of the progress
func (ps ProgressStats) String() string {
	if ps.Total > 0 {
		return fmt.Sprintf("%s: %d/%d (%.1f%%) at %.2f/sec, ETA: %v",
			ps.Operation, ps.Current, ps.Total, ps.Percentage, ps.Rate, ps.ETA)
	}
	return fmt.Sprintf("%s: %d processed at %.2f/sec, elapsed: %v",
		ps.Operation, ps.Current, ps.Rate, ps.Duration)
}

// TimedOperation executes fn and logs how long it took
func TimedOperation(operation string, logger Logger, fn func() error) error {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	log := logger.WithField("operation", operation)
	start := time.Now()

	err := fn()

	log = log.WithField("duration", time.Since(start).String())
	if err != nil {
		log.WithError(err).Error("Operation failed")
	} else {
		log.Debug("Operation completed")
	}
	return err
}

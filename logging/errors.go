package logging

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ErrorTracker aggregates recovered errors by (severity, message) so the
// bus's panic-recovery hook can report a handler error without ever
// halting the dispatcher.
type ErrorTracker struct {
	mu     sync.RWMutex
	errors map[string]*ErrorStats
}

// ErrorStats tracks occurrence counts for one (severity, message) pair.
type ErrorStats struct {
	ErrorType string
	Message   string
	Severity  string
	Count     int64
	FirstSeen time.Time
	LastSeen  time.Time
	LastExtra map[string]interface{}
}

// NewErrorTracker creates an empty ErrorTracker.
func NewErrorTracker() *ErrorTracker {
	return &ErrorTracker{
		errors: make(map[string]*ErrorStats),
	}
}

// Track records one occurrence of err under severity, keeping the most
// recent extra context for inspection.
func (et *ErrorTracker) Track(ctx context.Context, err error, severity string, extra map[string]interface{}) {
	if err == nil {
		return
	}

	errorKey := fmt.Sprintf("%s:%s", severity, err.Error())

	et.mu.Lock()
	defer et.mu.Unlock()

	stats, exists := et.errors[errorKey]
	if !exists {
		stats = &ErrorStats{
			ErrorType: getErrorType(err),
			Message:   err.Error(),
			Severity:  severity,
			FirstSeen: time.Now(),
		}
		et.errors[errorKey] = stats
	}

	stats.Count++
	stats.LastSeen = time.Now()
	stats.LastExtra = extra
}

// GetStats returns a snapshot of every tracked error.
func (et *ErrorTracker) GetStats() map[string]*ErrorStats {
	et.mu.RLock()
	defer et.mu.RUnlock()

	stats := make(map[string]*ErrorStats, len(et.errors))
	for k, v := range et.errors {
		statsCopy := *v
		stats[k] = &statsCopy
	}
	return stats
}

// Clear resets all tracked error statistics.
func (et *ErrorTracker) Clear() {
	et.mu.Lock()
	defer et.mu.Unlock()
	et.errors = make(map[string]*ErrorStats)
}

func getErrorType(err error) string {
	return fmt.Sprintf("%T", err)
}

// globalErrorTracker backs the package-level TrackError/GetErrorStats
// helpers used by event.Bus's default error handler.
var globalErrorTracker = NewErrorTracker()

// TrackError tracks an error in the global tracker.
func TrackError(ctx context.Context, err error, severity string, extra map[string]interface{}) {
	globalErrorTracker.Track(ctx, err, severity, extra)
}

// GetErrorStats returns global error statistics.
func GetErrorStats() map[string]*ErrorStats {
	return globalErrorTracker.GetStats()
}

package application

import (
	"fmt"
	"testing"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
)

func TestDetector_FlagsFirstIPPastLimit(t *testing.T) {
	d := NewDetector(2)
	history := map[string]struct{}{}

	assert.False(t, d.IsSuspicious(history, "10.0.0.1"))
	assert.False(t, d.IsSuspicious(history, "10.0.0.2"))
	assert.True(t, d.IsSuspicious(history, "10.0.0.3"))
	assert.Len(t, history, 3)
}

func TestDetector_RecurringIPNeverSuspiciousAndNoMutation(t *testing.T) {
	d := NewDetector(1)
	history := map[string]struct{}{"10.0.0.1": {}, "10.0.0.2": {}}

	assert.False(t, d.IsSuspicious(history, "10.0.0.1"))
	assert.False(t, d.IsSuspicious(history, "10.0.0.2"))
	assert.Len(t, history, 2)
}

func TestDetector_HistoryIsCapped(t *testing.T) {
	d := NewDetector(2)
	history := map[string]struct{}{}

	for i := 0; i < 100; i++ {
		d.IsSuspicious(history, fmt.Sprintf("10.0.0.%d", i))
	}
	assert.Len(t, history, 2*HistoryFactor)
	assert.True(t, d.IsSuspicious(history, "192.168.0.1"))
	assert.Len(t, history, 2*HistoryFactor)
}

func TestDetector_InvalidLimitPanics(t *testing.T) {
	assert.PanicsWithError(t, "rate limiter is not configured: suspicious ip change limit must be positive, got 0", func() {
		NewDetector(0)
	})

	var d *Detector
	assert.Panics(t, func() { d.IsSuspicious(map[string]struct{}{}, "10.0.0.1") })
}

func TestDetector_PanicWrapsSentinel(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		assert.True(t, ok)
		assert.ErrorIs(t, err, domain.ErrUnconfiguredLimiter)
	}()
	NewDetector(-1)
}

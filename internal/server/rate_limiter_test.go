package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsBurstThenBlocks(t *testing.T) {
	limiter := newRateLimiter(3, time.Hour)

	for i := range 3 {
		assert.True(t, limiter.Allow(), "message %d", i)
	}
	assert.False(t, limiter.Allow())
}

func TestRateLimiterInvalidSettingsFallBack(t *testing.T) {
	limiter := newRateLimiter(0, 0)

	assert.Equal(t, 1, limiter.Burst())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
}

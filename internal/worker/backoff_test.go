package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	// First retry already incurs one multiplier step.
	assert.Equal(t, 2*time.Second, backoffDelay(1*time.Second, 2, 1))
	assert.Equal(t, 4*time.Second, backoffDelay(1*time.Second, 2, 2))
	assert.Equal(t, 8*time.Second, backoffDelay(1*time.Second, 2, 3))

	assert.Equal(t, 1500*time.Millisecond, backoffDelay(500*time.Millisecond, 3, 1))
	assert.Equal(t, 4500*time.Millisecond, backoffDelay(500*time.Millisecond, 3, 2))
}

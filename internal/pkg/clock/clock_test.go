package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixed(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c := NewFixed(base)
	assert.Equal(t, base, c.Now())

	c.Advance(90 * time.Minute)
	assert.Equal(t, base.Add(90*time.Minute), c.Now())

	c.Set(base)
	assert.Equal(t, base, c.Now())
}

func TestReal(t *testing.T) {
	before := time.Now()
	got := Real{}.Now()
	assert.False(t, got.Before(before))
}

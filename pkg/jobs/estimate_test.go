package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInitialEstimate(t *testing.T) {
	assert.Equal(t, time.Duration(0), InitialEstimate(0, 0, false))

	plain := InitialEstimate(1<<20, 2, false)
	complexDocs := InitialEstimate(1<<20, 2, true)
	assert.Greater(t, complexDocs, plain)
	assert.GreaterOrEqual(t, plain, 5*time.Second)
}

func TestRefineEstimate(t *testing.T) {
	// 2 of 4 files done in 1 minute: 1 minute remains.
	got := RefineEstimate(time.Minute, 2, 4)
	assert.Equal(t, time.Minute, got)

	assert.Equal(t, time.Duration(0), RefineEstimate(time.Minute, 0, 4))
	assert.Equal(t, time.Duration(0), RefineEstimate(time.Minute, 4, 4))
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "almost done"},
		{3 * time.Second, "about 5 seconds"},
		{42 * time.Second, "about 45 seconds"},
		{90 * time.Second, "about 2 minutes"},
		{10 * time.Minute, "about 10 minutes"},
		{time.Hour, "about 1 hour"},
		{70 * time.Minute, "about 1 hour 10 minutes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanDuration(tt.in), "input %v", tt.in)
	}
}

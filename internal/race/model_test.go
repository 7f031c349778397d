package race

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBettingWindow(t *testing.T) {
	start := time.Date(2026, 3, 8, 6, 0, 0, 0, time.UTC)
	r := Race{StartTime: start}

	assert.True(t, r.BettingOpen(start.Add(-time.Hour)))
	assert.False(t, r.BettingOpen(start.Add(-CutoffMargin)), "cutoff é inclusivo")
	assert.False(t, r.BettingOpen(start.Add(-time.Minute)))

	assert.False(t, r.Started(start.Add(-time.Second)))
	assert.True(t, r.Started(start))
	assert.True(t, r.Started(start.Add(time.Hour)))
}

func TestDefaultSchedule(t *testing.T) {
	races := DefaultSchedule()
	require.Len(t, races, 24)

	for i, r := range races {
		assert.Equal(t, i+1, r.Round)
		assert.Equal(t, 2026, r.Season)

		// id casa com o formato derivado do feed de resultados
		d := r.StartTime
		want := fmt.Sprintf("race_%d_%04d%02d%02d", r.Round, d.Year(), int(d.Month()), d.Day())
		assert.Equal(t, want, r.ID)
	}

	// Calendário em ordem cronológica.
	for i := 1; i < len(races); i++ {
		assert.True(t, races[i].StartTime.After(races[i-1].StartTime))
	}
}

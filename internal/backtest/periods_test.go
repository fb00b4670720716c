package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodsFirstCutoffThreeStepsIn(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	periods := Periods(start, end, 3, 3)
	require.NotEmpty(t, periods)

	assert.Equal(t, start.AddDate(0, 9, 0), periods[0].Cutoff)
	assert.Equal(t, start.AddDate(0, 12, 0), periods[0].TestEnd)
	assert.Equal(t, start, periods[0].Start, "training always reaches back to the run start")
}

func TestPeriodsAdvanceByStepAndClampToEnd(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)

	periods := Periods(start, end, 3, 3)
	require.Len(t, periods, 2)

	assert.Equal(t, start.AddDate(0, 9, 0), periods[0].Cutoff)
	assert.Equal(t, start.AddDate(0, 12, 0), periods[1].Cutoff)
	assert.Equal(t, end, periods[1].TestEnd, "last test window clamps to the run end")

	for _, p := range periods {
		assert.True(t, p.Cutoff.After(p.Start))
		assert.True(t, p.TestEnd.After(p.Cutoff))
	}
}

func TestPeriodsEmptyWhenRangeTooShort(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 6, 0)

	assert.Empty(t, Periods(start, end, 3, 3))
}

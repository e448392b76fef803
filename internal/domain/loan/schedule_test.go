package loan

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestFrequency(t *testing.T) {
	tests := []struct {
		frequency    Frequency
		months       int
		days         int
		installments int
	}{
		{FrequencyMonthly, 1, 30, 12},
		{FrequencyQuarterly, 3, 90, 4},
		{FrequencySemiAnnual, 6, 180, 2},
		{FrequencyAnnual, 12, 365, 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			assert.True(t, tt.frequency.IsValid())
			assert.Equal(t, tt.months, tt.frequency.MonthsPerPeriod())
			assert.Equal(t, time.Duration(tt.days)*24*time.Hour, tt.frequency.Step())
			assert.Equal(t, tt.installments, tt.frequency.Installments(12))
		})
	}
	assert.Equal(t, 1, FrequencyAnnual.Installments(6), "at least one installment")
}

func TestFixedPayment(t *testing.T) {
	assert.True(t, FixedPayment(dec("12000"), dec("0.01"), 12).Equal(dec("1066.19")))
	assert.True(t, FixedPayment(dec("1200"), decimal.Zero, 12).Equal(dec("100")))
}

func TestBuildSchedule_Interest(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	schedule := BuildSchedule(dec("12000"), dec("12"), 12, FrequencyMonthly, start)
	require.Len(t, schedule, 12)

	first := schedule[0]
	assert.Equal(t, 1, first.Number)
	assert.True(t, first.Interest.Equal(dec("120")))
	assert.True(t, first.Principal.Equal(dec("946.19")))
	assert.True(t, first.Amount().Equal(dec("1066.19")))
	assert.Equal(t, start.AddDate(0, 0, 30), first.ScheduledDate)

	last := schedule[11]
	assert.True(t, last.Principal.Equal(dec("1055.58")))
	assert.True(t, last.Interest.Equal(dec("10.56")))
	assert.True(t, last.Remaining.IsZero())
	assert.Equal(t, start.AddDate(0, 0, 360), last.ScheduledDate)

	total := decimal.Zero
	for _, inst := range schedule {
		total = total.Add(inst.Principal)
	}
	assert.True(t, total.Equal(dec("12000")), "principal sums to %s", total)
}

func TestBuildSchedule_ZeroRate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	schedule := BuildSchedule(dec("1000"), decimal.Zero, 3, FrequencyMonthly, start)
	require.Len(t, schedule, 3)
	assert.True(t, schedule[0].Principal.Equal(dec("333.33")))
	assert.True(t, schedule[1].Principal.Equal(dec("333.33")))
	assert.True(t, schedule[2].Principal.Equal(dec("333.34")))
	for _, inst := range schedule {
		assert.True(t, inst.Interest.IsZero())
	}
}

func TestBuildSchedule_Quarterly(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	schedule := BuildSchedule(dec("4000"), dec("12"), 12, FrequencyQuarterly, start)
	require.Len(t, schedule, 4)
	assert.True(t, schedule[0].Interest.Equal(dec("120")), "three percent per quarter")
	assert.Equal(t, start.AddDate(0, 0, 90), schedule[0].ScheduledDate)
}

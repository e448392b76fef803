package loan

import "time"

// Frequency is how often installments fall due
type Frequency string

const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencySemiAnnual Frequency = "semi_annual"
	FrequencyAnnual     Frequency = "annual"
)

// IsValid checks if the frequency is a valid Frequency
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencySemiAnnual, FrequencyAnnual:
		return true
	}
	return false
}

// String returns the string representation of Frequency
func (f Frequency) String() string {
	return string(f)
}

// MonthsPerPeriod returns the number of months between installments
func (f Frequency) MonthsPerPeriod() int {
	switch f {
	case FrequencyQuarterly:
		return 3
	case FrequencySemiAnnual:
		return 6
	case FrequencyAnnual:
		return 12
	default:
		return 1
	}
}

// Step returns the fixed day offset between installments
func (f Frequency) Step() time.Duration {
	days := 30
	switch f {
	case FrequencyQuarterly:
		days = 90
	case FrequencySemiAnnual:
		days = 180
	case FrequencyAnnual:
		days = 365
	}
	return time.Duration(days) * 24 * time.Hour
}

// Installments returns how many installments a loan of durationMonths has
func (f Frequency) Installments(durationMonths int) int {
	n := durationMonths / f.MonthsPerPeriod()
	if n < 1 {
		return 1
	}
	return n
}

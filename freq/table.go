// Package freq holds the table of sampling frequencies a device advertises and
// the negotiation of a requested sampling period against it.
package freq

import (
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/sensorhal"
)

// Table is an ascending sequence of distinct supported frequencies. It is
// immutable once built.
type Table struct {
	freqs []physic.Frequency
}

// NewTable builds a table from the values advertised by the device. Entries
// that are not positive finite numbers are dropped; an empty result is a
// configuration error.
func NewTable(hz []float64) (Table, error) {
	freqs := make([]physic.Frequency, 0, len(hz))
	for _, v := range hz {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			continue
		}
		f := physic.Frequency(math.Round(v * float64(physic.Hertz)))
		if f <= 0 {
			continue
		}
		freqs = append(freqs, f)
	}
	slices.Sort(freqs)
	freqs = slices.Compact(freqs)
	if len(freqs) == 0 {
		return Table{}, sensorhal.ErrEmptyFrequencyTable
	}
	return Table{freqs: freqs}, nil
}

func (t Table) Len() int {
	return len(t.freqs)
}

func (t Table) Frequencies() []physic.Frequency {
	return slices.Clone(t.freqs)
}

func (t Table) Min() physic.Frequency {
	if len(t.freqs) == 0 {
		return 0
	}
	return t.freqs[0]
}

func (t Table) Max() physic.Frequency {
	if len(t.freqs) == 0 {
		return 0
	}
	return t.freqs[len(t.freqs)-1]
}

// MinDelay is the period of the highest supported frequency.
func (t Table) MinDelay() time.Duration {
	return PeriodOf(t.Max())
}

// MaxDelay is the period of the lowest supported frequency.
func (t Table) MaxDelay() time.Duration {
	return PeriodOf(t.Min())
}

// Clamp bounds a requested period to [MinDelay, MaxDelay].
func (t Table) Clamp(period time.Duration) time.Duration {
	return Clamp(period, t.MinDelay(), t.MaxDelay())
}

// Select returns the smallest supported frequency that is not lower than
// target, or the highest one when target exceeds them all.
func (t Table) Select(target physic.Frequency) physic.Frequency {
	if len(t.freqs) == 0 {
		return 0
	}
	i := sort.Search(len(t.freqs), func(i int) bool {
		return t.freqs[i] >= target
	})
	if i == len(t.freqs) {
		i = len(t.freqs) - 1
	}
	return t.freqs[i]
}

// SelectPeriod returns the lowest supported frequency whose period fits
// into period, or the highest one when none does. Periods of the table are
// compared as PeriodOf computes them so that MinDelay and MaxDelay select
// Max and Min exactly.
func (t Table) SelectPeriod(period time.Duration) physic.Frequency {
	if len(t.freqs) == 0 {
		return 0
	}
	i := sort.Search(len(t.freqs), func(i int) bool {
		return PeriodOf(t.freqs[i]) <= period
	})
	if i == len(t.freqs) {
		i = len(t.freqs) - 1
	}
	return t.freqs[i]
}

// Negotiate clamps the requested period and picks the frequency to program.
func (t Table) Negotiate(period time.Duration) (time.Duration, physic.Frequency) {
	clamped := t.Clamp(period)
	return clamped, t.SelectPeriod(clamped)
}

func (t Table) String() string {
	parts := make([]string, len(t.freqs))
	for i, f := range t.freqs {
		parts[i] = f.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Clamp bounds period to [lo, hi].
func Clamp(period, lo, hi time.Duration) time.Duration {
	if period < lo {
		return lo
	}
	if period > hi {
		return hi
	}
	return period
}

// PeriodOf converts a frequency to a period truncated to whole microseconds.
func PeriodOf(f physic.Frequency) time.Duration {
	if f <= 0 {
		return 0
	}
	us := int64(time.Second/time.Microsecond) * int64(physic.Hertz) / int64(f)
	return time.Duration(us) * time.Microsecond
}

// FrequencyOf converts a period to a frequency, truncated to micro Hertz so
// that a period derived from a supported frequency maps back onto it.
func FrequencyOf(period time.Duration) physic.Frequency {
	if period <= 0 {
		return 0
	}
	return physic.Frequency(int64(time.Second) * int64(physic.Hertz) / int64(period))
}

// Hz returns the frequency as floating point Hertz, the unit device
// attributes use.
func Hz(f physic.Frequency) float64 {
	return float64(f) / float64(physic.Hertz)
}

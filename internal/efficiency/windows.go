package efficiency

import (
	"time"

	"alkalytics/pkg/contracts/domain"
)

// DefaultWindowMinutes is the window length used when none is configured.
const DefaultWindowMinutes = 5

// Measurement channels read by the formulas.
const (
	ChannelHClConductivity  = "C1 Cond"
	ChannelNaOHConductivity = "C2 Cond"
	ChannelCurrent          = "I Cmm"
	ChannelStackVoltage     = "U Stac"
	ChannelTotalVoltage     = "U Cmm"
)

// Channels lists every channel a calculation may read.
var Channels = []string{
	ChannelHClConductivity,
	ChannelNaOHConductivity,
	ChannelCurrent,
	ChannelStackVoltage,
	ChannelTotalVoltage,
}

// Sample is one timestamped measurement row. Values holds the numeric
// channels present on the row.
type Sample struct {
	Time   time.Time
	Values map[string]float64
}

// Value returns a channel reading
func (s Sample) Value(channel string) (float64, bool) {
	v, ok := s.Values[channel]
	return v, ok
}

// SamplesFromRecords converts stored data records into samples, skipping
// records without a timestamp. Order is preserved.
func SamplesFromRecords(records []*domain.Record) []Sample {
	out := make([]Sample, 0, len(records))
	for _, r := range records {
		at, ok := r.Value(domain.FieldTime).TimeValue()
		if !ok {
			continue
		}
		s := Sample{Time: at, Values: make(map[string]float64, len(Channels))}
		for _, ch := range Channels {
			if f, ok := r.Value(ch).Float(); ok {
				s.Values[ch] = f
			}
		}
		out = append(out, s)
	}
	return out
}

// GroupIntoWindows partitions a time ordered series into consecutive
// windows. A window closes on the first sample whose elapsed time from the
// series start reaches the window's end; a trailing partial window is kept.
// Non-positive interval lengths fall back to DefaultWindowMinutes.
func GroupIntoWindows(series []Sample, intervalMinutes int) [][]Sample {
	if len(series) == 0 {
		return nil
	}
	if intervalMinutes <= 0 {
		intervalMinutes = DefaultWindowMinutes
	}

	start := series[0].Time
	var windows [][]Sample
	var current []Sample
	for _, s := range series {
		current = append(current, s)
		elapsed := s.Time.Sub(start).Minutes()
		if elapsed >= float64((len(windows)+1)*intervalMinutes) {
			windows = append(windows, current)
			current = nil
		}
	}
	if len(current) > 0 {
		windows = append(windows, current)
	}
	return windows
}

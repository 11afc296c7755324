package efficiency

import (
	"errors"
	"fmt"
)

// ReactionSliceMinutes is the length of the final segment used by the
// reaction efficiency.
const ReactionSliceMinutes = 5

// ErrNoSamples is returned by formulas that cannot work on an empty series.
var ErrNoSamples = errors.New("no samples")

// Formulas evaluates the windowed efficiency formulas.
type Formulas struct {
	WindowMinutes int
}

// DefaultFormulas uses five minute windows.
var DefaultFormulas = Formulas{WindowMinutes: DefaultWindowMinutes}

func (f Formulas) window() int {
	if f.WindowMinutes <= 0 {
		return DefaultWindowMinutes
	}
	return f.WindowMinutes
}

// CurrentEfficiency returns the current efficiency in percent for one
// compound. The first window sets the baseline concentration; each later
// window i contributes the concentration gain achieved against the charge
// passed over window·(i+1) minutes. An empty series yields 0.
func (f Formulas) CurrentEfficiency(series []Sample, c Compound, finalVolumeL, numStacks float64) (float64, error) {
	if _, err := MolarMass(c); err != nil {
		return 0, err
	}
	if numStacks <= 0 {
		return 0, fmt.Errorf("number of stacks must be positive, got %g", numStacks)
	}
	channel := ChannelHClConductivity
	if c == NaOH {
		channel = ChannelNaOHConductivity
	}

	windows := GroupIntoWindows(series, f.window())
	var contributions []float64
	var baseline float64
	for i, w := range windows {
		if i == 0 {
			cond, err := mean(w, channel)
			if err != nil {
				return 0, err
			}
			if baseline, err = ConductivityToConcentration(cond, c); err != nil {
				return 0, err
			}
			continue
		}

		current, err := mean(w, ChannelCurrent)
		if err != nil {
			return 0, err
		}
		if current == 0 {
			contributions = append(contributions, 0)
			continue
		}
		cond, err := mean(w, channel)
		if err != nil {
			return 0, err
		}
		conc, err := ConductivityToConcentration(cond, c)
		if err != nil {
			return 0, err
		}
		minutes := float64(f.window() * (i + 1))
		contributions = append(contributions,
			((conc-baseline)*finalVolumeL*FaradayConstant)/(numStacks*minutes*current*60))
	}

	if len(contributions) == 0 {
		return 0, nil
	}
	return average(contributions) * 100, nil
}

// VoltageDropEfficiency returns the mean share of the total voltage that
// drops across the stack, in percent. A window with zero mean total voltage
// contributes 0.
func (f Formulas) VoltageDropEfficiency(series []Sample) (float64, error) {
	windows := GroupIntoWindows(series, f.window())
	if len(windows) == 0 {
		return 0, nil
	}
	ratios := make([]float64, 0, len(windows))
	for _, w := range windows {
		stack, err := mean(w, ChannelStackVoltage)
		if err != nil {
			return 0, err
		}
		total, err := mean(w, ChannelTotalVoltage)
		if err != nil {
			return 0, err
		}
		if total == 0 {
			ratios = append(ratios, 0)
			continue
		}
		ratios = append(ratios, stack/total)
	}
	return average(ratios) * 100, nil
}

// ReactionEfficiency compares acid and base produced over the final segment
// of an experiment, in percent.
func ReactionEfficiency(slice []Sample, volHClL, volNaOHL float64) (float64, error) {
	if len(slice) == 0 {
		return 0, ErrNoSamples
	}
	condHCl, err := mean(slice, ChannelHClConductivity)
	if err != nil {
		return 0, err
	}
	condNaOH, err := mean(slice, ChannelNaOHConductivity)
	if err != nil {
		return 0, err
	}
	concHCl, _ := ConductivityToConcentration(condHCl, HCl)
	concNaOH, _ := ConductivityToConcentration(condNaOH, NaOH)

	denominator := concNaOH * volNaOHL
	if denominator == 0 {
		return 0, errors.New("base concentration or volume is zero")
	}
	return (concHCl * volHClL) / denominator * 100, nil
}

// OverallEfficiency is the mean of exactly four component efficiencies.
// Any other count is not computable.
func OverallEfficiency(values []float64) (float64, bool) {
	if len(values) != 4 {
		return 0, false
	}
	return average(values), true
}

// mean averages one channel over samples. Every sample must carry it.
func mean(samples []Sample, channel string) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}
	var sum float64
	for _, s := range samples {
		v, ok := s.Value(channel)
		if !ok {
			return 0, fmt.Errorf("sample at %s has no %q reading", s.Time.Format("2006-01-02 15:04:05"), channel)
		}
		sum += v
	}
	return sum / float64(len(samples)), nil
}

func average(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

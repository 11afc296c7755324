package efficiency

import "fmt"

// Compound is the product stream a conductivity reading belongs to.
type Compound string

const (
	HCl  Compound = "HCL"
	NaOH Compound = "NaOH"
)

// FaradayConstant in C/mol.
const FaradayConstant = 96485.0

var molarMass = map[Compound]float64{
	HCl:  36.4609,
	NaOH: 39.997,
}

// Calibration table: concentration in ppm against conductivity in µS/cm.
var (
	tablePPM = []float64{1, 3, 10, 30, 100, 300, 1000, 3000, 10000, 30000, 50000, 100000, 200000}

	tableConductivity = map[Compound][]float64{
		HCl:  {11.7, 35, 116, 340, 1140, 3390, 11100, 32200, 103000, 283000, 432000, 709000, 850000},
		NaOH: {6.2, 18.4, 61.1, 182, 603, 1780, 5820, 16900, 53200, 144000, 223000, 358000, 414000},
	}
)

// MolarMass returns the compound's molar mass in g/mol.
func MolarMass(c Compound) (float64, error) {
	m, ok := molarMass[c]
	if !ok {
		return 0, fmt.Errorf("unknown compound %q", c)
	}
	return m, nil
}

// InterpolatePPM maps a conductivity in µS/cm to ppm by piecewise linear
// interpolation, clamped to the table's end points.
func InterpolatePPM(microSiemens float64, c Compound) (float64, error) {
	xs, ok := tableConductivity[c]
	if !ok {
		return 0, fmt.Errorf("unknown compound %q", c)
	}
	return interp(microSiemens, xs, tablePPM), nil
}

// ConductivityToConcentration converts a conductivity in mS/cm to a molar
// concentration.
func ConductivityToConcentration(milliSiemens float64, c Compound) (float64, error) {
	ppm, err := InterpolatePPM(milliSiemens*1000, c)
	if err != nil {
		return 0, err
	}
	return ppm / (molarMass[c] * 1000), nil
}

// interp evaluates the piecewise linear function through (xs, ys) at x.
// xs must be increasing.
func interp(x float64, xs, ys []float64) float64 {
	last := len(xs) - 1
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[last] {
		return ys[last]
	}
	for i := 1; i <= last; i++ {
		if x == xs[i] {
			return ys[i]
		}
		if x < xs[i] {
			x0, x1 := xs[i-1], xs[i]
			y0, y1 := ys[i-1], ys[i]
			return y0 + (x-x0)*(y1-y0)/(x1-x0)
		}
	}
	return ys[last]
}

package postal

// Unit conversion constants shared by the data model. Dimensions and weights
// are stored imperial internally; metric inputs are converted on construction.
const (
	centimetersPerInch = 2.54
	kilogramsPerPound  = 0.453592
)

// InchesToCentimeters converts a length in inches to centimeters.
func InchesToCentimeters(in float64) float64 {
	return in * centimetersPerInch
}

// CentimetersToInches converts a length in centimeters to inches.
func CentimetersToInches(cm float64) float64 {
	return cm / centimetersPerInch
}

// PoundsToKilograms converts a weight in pounds to kilograms.
func PoundsToKilograms(lb float64) float64 {
	return lb * kilogramsPerPound
}

// KilogramsToPounds converts a weight in kilograms to pounds.
func KilogramsToPounds(kg float64) float64 {
	return kg / kilogramsPerPound
}

package summary

// Phase is the composting stage implied by pile temperature.
type Phase string

const (
	Inactive      Phase = "Inactive"
	Psychrophilic Phase = "Psychrophilic"
	Mesophilic    Phase = "Mesophilic"
	Thermophilic  Phase = "Thermophilic"
	Overheating   Phase = "Overheating"
)

// PhaseFor classifies a temperature in °C. A missing reading is Inactive.
func PhaseFor(temp *float64) Phase {
	if temp == nil {
		return Inactive
	}
	switch t := *temp; {
	case t < 10:
		return Psychrophilic
	case t < 45:
		return Mesophilic
	case t <= 70:
		return Thermophilic
	case t > 70:
		return Overheating
	}
	// NaN
	return Inactive
}

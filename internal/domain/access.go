package domain

// Sensitivity classifies how much damage a role can do. Ordinal:
// LOW < MEDIUM < HIGH < CRITICAL.
type Sensitivity string

const (
	SensitivityLow      Sensitivity = "LOW"
	SensitivityMedium   Sensitivity = "MEDIUM"
	SensitivityHigh     Sensitivity = "HIGH"
	SensitivityCritical Sensitivity = "CRITICAL"
)

// Level maps sensitivity to its ordinal (LOW=0 .. CRITICAL=3). Unknown values
// map to 0 so malformed data degrades risk toward zero rather than failing.
func (s Sensitivity) Level() int {
	switch s {
	case SensitivityMedium:
		return 1
	case SensitivityHigh:
		return 2
	case SensitivityCritical:
		return 3
	default:
		return 0
	}
}

// Weight is the risk weight used by the role sensitivity factor.
func (s Sensitivity) Weight() float64 {
	switch s {
	case SensitivityLow:
		return 0.1
	case SensitivityMedium:
		return 0.4
	case SensitivityHigh:
		return 0.7
	case SensitivityCritical:
		return 1.0
	default:
		return 0
	}
}

// Role is a bundle of access with a sensitivity level and domain tags.
// Immutable once loaded into the registry.
type Role struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Sensitivity Sensitivity `json:"sensitivity"`
	Domains     []string    `json:"domains"`
}

// Entitlement is a fine-grained access grant, optionally tied to a resource.
type Entitlement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Resource    string `json:"resource,omitempty"`
}

package catalog

import "strings"

// Status labels the depth column legend understands.
const (
	StatusEndangered = "Endangered"
	StatusThreatened = "Threatened"
	StatusOther      = "Other"
)

// NormalizeStatus collapses a raw listing status onto the three
// labels. The threatened check runs first; NOAA pages for proposed
// listings mention both words.
func NormalizeStatus(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "threatened"):
		return StatusThreatened
	case strings.Contains(lower, "endangered"):
		return StatusEndangered
	}
	return StatusOther
}

// threatCategories pairs each canonical category with the wording
// that maps onto it. Matching is case-insensitive substring search;
// the first category that hits wins for a given threat string.
var threatCategories = []struct {
	name     string
	keywords []string
}{
	{"climate change", []string{"climate change", "ocean acidification", "ocean warming", "sea level rise", "temperatures"}},
	{"disease", []string{"disease"}},
	{"fishing", []string{"fishing", "bycatch", "fisheries", "entanglement", "vessel", "harvest"}},
	{"habitat loss", []string{"habitat", "dredging"}},
	{"pollution", []string{"oil", "spill", "gas", "pollution", "pollutant", "contaminant", "toxic", "toxin", "debris"}},
	{"predation", []string{"predation", "predator", "harassment"}},
	{"low population", []string{"population"}},
}

// CategorizeThreats maps raw threat wording onto canonical categories,
// in canonical order. Wording that matches no category contributes
// nothing.
func CategorizeThreats(threats []string) []string {
	matched := make([]bool, len(threatCategories))
	for _, raw := range threats {
		lower := strings.ToLower(raw)
		for i, cat := range threatCategories {
			if containsAny(lower, cat.keywords) {
				matched[i] = true
				break
			}
		}
	}

	var out []string
	for i, cat := range threatCategories {
		if matched[i] {
			out = append(out, cat.name)
		}
	}
	return out
}

// Categories returns the canonical category names in order.
func Categories() []string {
	out := make([]string, len(threatCategories))
	for i, cat := range threatCategories {
		out[i] = cat.name
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

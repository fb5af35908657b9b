package catalog

import (
	"reflect"
	"testing"
)

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"Endangered", StatusEndangered},
		{"Endangered throughout its range", StatusEndangered},
		{"Threatened", StatusThreatened},
		{"Proposed Threatened", StatusThreatened},
		{"threatened (foreign population), endangered (US)", StatusThreatened},
		{"Species of Concern", StatusOther},
		{"Protected", StatusOther},
		{"", StatusOther},
	}
	for _, tt := range tests {
		if got := NormalizeStatus(tt.raw); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCategorizeThreats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		threats []string
		want    []string
	}{
		{
			"single match",
			[]string{"Entanglement in fishing gear"},
			[]string{"fishing"},
		},
		{
			"canonical order regardless of input order",
			[]string{"Oil spills", "Ocean warming", "Bycatch"},
			[]string{"climate change", "fishing", "pollution"},
		},
		{
			"duplicates collapse",
			[]string{"Overfishing", "Bycatch", "Commercial harvest"},
			[]string{"fishing"},
		},
		{
			"first category wins per threat",
			[]string{"Oil spills degrading habitat"},
			[]string{"habitat loss"},
		},
		{
			"climate wording",
			[]string{"Ocean acidification", "Sea level rise", "Changing water temperatures"},
			[]string{"climate change"},
		},
		{
			"population and predation",
			[]string{"Low population density", "Predation by sea otters", "Harassment"},
			[]string{"predation", "low population"},
		},
		{
			"unmatched wording contributes nothing",
			[]string{"Aquarium trade", "Coastal development"},
			nil,
		},
		{
			"empty input",
			nil,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeThreats(tt.threats)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CategorizeThreats(%v) = %v, want %v", tt.threats, got, tt.want)
			}
		})
	}
}

func TestCategories(t *testing.T) {
	t.Parallel()

	want := []string{
		"climate change",
		"disease",
		"fishing",
		"habitat loss",
		"pollution",
		"predation",
		"low population",
	}
	if got := Categories(); !reflect.DeepEqual(got, want) {
		t.Errorf("Categories() = %v, want %v", got, want)
	}
}

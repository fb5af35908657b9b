// Package catalog holds the species snapshot the server works from.
// A snapshot is loaded once at startup and kept entirely in memory;
// the server never writes it back.
package catalog

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Species is one catalog record. Depth bounds are metres below the
// surface and stay nil when the source listing gives none.
type Species struct {
	ID             int64    `json:"id"`
	Source         string   `json:"source"`
	SourceRecordID string   `json:"source_record_id"`
	DetailURL      string   `json:"detail_url,omitempty"`
	CommonName     string   `json:"common_name"`
	ScientificName string   `json:"scientific_name"`
	Status         string   `json:"status"`
	ImageURL       string   `json:"image_url"`
	MinDepthM      *float64 `json:"min_depth_m,omitempty"`
	MaxDepthM      *float64 `json:"max_depth_m,omitempty"`
	DepthNotes     string   `json:"depth_notes,omitempty"`
	DepthSource    string   `json:"depth_source,omitempty"`
	Threats        []string `json:"threats"`
	Categories     []string `json:"threat_categories,omitempty"`
}

// Threat is one entry of the threat vocabulary.
type Threat struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Filter narrows a species listing. Zero values mean "no filter".
type Filter struct {
	Status   string
	Threat   string
	Category string
	Limit    int
	Offset   int
}

// Listing page bounds, matching the provider interface.
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Store is the loaded snapshot. It is immutable after Load, so
// concurrent readers need no locking.
type Store struct {
	species []Species
	byID    map[int64]int
	threats []Threat
}

// Load reads a snapshot file. The format follows the extension:
// .json for a plain export, .json.zst for a zstd-compressed one, and
// .db/.sqlite/.sqlite3 for a database snapshot (opened read-only).
func Load(path string) (*Store, error) {
	switch ext := filepath.Ext(path); ext {
	case ".json":
		species, err := loadJSON(path)
		if err != nil {
			return nil, err
		}
		return newStore(species, nil), nil
	case ".zst":
		if !strings.HasSuffix(path, ".json.zst") {
			return nil, fmt.Errorf("unsupported catalog format %q", path)
		}
		species, err := loadJSON(path)
		if err != nil {
			return nil, err
		}
		return newStore(species, nil), nil
	case ".db", ".sqlite", ".sqlite3":
		species, threats, err := loadSQLite(path)
		if err != nil {
			return nil, err
		}
		return newStore(species, threats), nil
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}
}

// newStore normalizes and indexes the raw records. Statuses collapse
// to the three column labels and threat wording maps onto canonical
// categories; records with prose depth notes but no bounds get bounds
// parsed out of the notes.
func newStore(species []Species, threats []Threat) *Store {
	for i := range species {
		sp := &species[i]
		sp.Status = NormalizeStatus(sp.Status)
		sp.Threats = dedupeThreats(sp.Threats)
		sp.Categories = CategorizeThreats(sp.Threats)
		if sp.MinDepthM == nil && sp.MaxDepthM == nil && sp.DepthNotes != "" {
			if min, max := ParseDepthRange(sp.DepthNotes); min != nil || max != nil {
				sp.MinDepthM = min
				sp.MaxDepthM = max
				sp.DepthSource = "derived"
			}
		}
	}

	sort.SliceStable(species, func(i, j int) bool {
		a := strings.ToLower(species[i].CommonName)
		b := strings.ToLower(species[j].CommonName)
		if a != b {
			return a < b
		}
		return species[i].SourceRecordID < species[j].SourceRecordID
	})

	// JSON exports carry no record ids; number them in listing order.
	for i := range species {
		if species[i].ID == 0 {
			species[i].ID = int64(i + 1)
		}
	}

	byID := make(map[int64]int, len(species))
	for i, sp := range species {
		byID[sp.ID] = i
	}

	if threats == nil {
		threats = collectThreats(species)
	}
	sort.Slice(threats, func(i, j int) bool { return threats[i].Name < threats[j].Name })

	return &Store{species: species, byID: byID, threats: threats}
}

// collectThreats builds the vocabulary from the species records when
// the snapshot has no threat table of its own.
func collectThreats(species []Species) []Threat {
	names := make(map[string]bool)
	for _, sp := range species {
		for _, t := range sp.Threats {
			names[t] = true
		}
	}
	threats := make([]Threat, 0, len(names))
	for name := range names {
		threats = append(threats, Threat{Name: name})
	}
	sort.Slice(threats, func(i, j int) bool { return threats[i].Name < threats[j].Name })
	for i := range threats {
		threats[i].ID = int64(i + 1)
	}
	return threats
}

// dedupeThreats drops repeats that differ only by case, keeping the
// first spelling seen.
func dedupeThreats(raw []string) []string {
	if len(raw) == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// Species returns the filtered listing in common-name order.
func (s *Store) Species(f Filter) []Species {
	limit := f.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	threat := strings.TrimSpace(f.Threat)

	out := make([]Species, 0, limit)
	skipped := 0
	for _, sp := range s.species {
		if f.Status != "" && sp.Status != f.Status {
			continue
		}
		if threat != "" && !containsString(sp.Threats, threat) {
			continue
		}
		if f.Category != "" && !containsString(sp.Categories, f.Category) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, sp)
		if len(out) == limit {
			break
		}
	}
	return out
}

// SpeciesByID returns one record.
func (s *Store) SpeciesByID(id int64) (Species, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Species{}, false
	}
	return s.species[i], true
}

// Threats returns the vocabulary in name order.
func (s *Store) Threats() []Threat {
	out := make([]Threat, len(s.threats))
	copy(out, s.threats)
	return out
}

// NumSpecies reports the snapshot size.
func (s *Store) NumSpecies() int {
	return len(s.species)
}

// NumThreats reports the vocabulary size.
func (s *Store) NumThreats() int {
	return len(s.threats)
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

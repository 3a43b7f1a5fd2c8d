package domain

import "fmt"

// ApplicationMode controls how an indicator's points are applied to the score.
type ApplicationMode string

const (
	// Flat indicators are charged once when triggered.
	Flat ApplicationMode = "flat"
	// PerUnit indicators are charged once per extra topic beyond the first.
	PerUnit ApplicationMode = "per_unit"
)

// Default indicator names. The catalog is data, so operators can rename,
// reweight or extend this set through configuration without code changes.
const (
	MissingKnowledge = "missing_knowledge"
	UnclearInfo      = "unclear_info"
	PremiumComplaint = "premium_complaint"
	AngryTone        = "angry_tone"
	Urgency          = "urgency"
	AdditionalTopic  = "additional_topic"
)

// Indicator is one catalog entry: a named risk factor and the signed points
// it contributes when triggered.
type Indicator struct {
	Name   string
	Points int
	Mode   ApplicationMode
}

// ImpactCatalog is the ordered indicator -> impact table the scorer runs
// against. Entry order is preserved: applied impacts and explanations follow
// catalog order, not input order.
type ImpactCatalog struct {
	entries []Indicator
	index   map[string]int
}

// NewImpactCatalog builds a catalog from an ordered entry list.
func NewImpactCatalog(entries []Indicator) (*ImpactCatalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("impact catalog cannot be empty")
	}

	index := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("impact catalog entry %d has no name", i)
		}
		if e.Mode != Flat && e.Mode != PerUnit {
			return nil, fmt.Errorf("impact catalog entry %q has invalid mode %q", e.Name, e.Mode)
		}
		if _, exists := index[e.Name]; exists {
			return nil, fmt.Errorf("impact catalog entry %q is duplicated", e.Name)
		}
		index[e.Name] = i
	}

	catalog := make([]Indicator, len(entries))
	copy(catalog, entries)

	return &ImpactCatalog{entries: catalog, index: index}, nil
}

// DefaultCatalog returns the standard scoring table.
func DefaultCatalog() *ImpactCatalog {
	catalog, err := NewImpactCatalog([]Indicator{
		{Name: MissingKnowledge, Points: -100, Mode: Flat},
		{Name: UnclearInfo, Points: -85, Mode: Flat},
		{Name: PremiumComplaint, Points: -50, Mode: Flat},
		{Name: AngryTone, Points: -30, Mode: Flat},
		{Name: Urgency, Points: -15, Mode: Flat},
		{Name: AdditionalTopic, Points: -10, Mode: PerUnit},
	})
	if err != nil {
		// The default table is fixed; a construction failure is a bug.
		panic(err)
	}
	return catalog
}

// Contains reports whether the catalog has an entry for name.
func (c *ImpactCatalog) Contains(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Entries returns the catalog entries in order.
func (c *ImpactCatalog) Entries() []Indicator {
	out := make([]Indicator, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of catalog entries.
func (c *ImpactCatalog) Len() int {
	return len(c.entries)
}

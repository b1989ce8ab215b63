package models

// Relation links a parent discipline tag to its more specific children.
type Relation struct {
	Parent   string   `json:"parent"`
	Children []string `json:"children"`
}

// Taxonomy is the tiered tag vocabulary shared by every quote of one source.
type Taxonomy struct {
	CoreConcepts  []string   `json:"core_concepts"`
	SpecialTopics []string   `json:"special_topics"`
	Outliers      []string   `json:"outliers"`
	Hierarchy     []Relation `json:"hierarchy,omitempty"`
}

// Vocabulary returns every tier tag in tier order.
func (t *Taxonomy) Vocabulary() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.CoreConcepts)+len(t.SpecialTopics)+len(t.Outliers))
	out = append(out, t.CoreConcepts...)
	out = append(out, t.SpecialTopics...)
	out = append(out, t.Outliers...)
	return out
}

// Contains reports whether tag is present in any tier.
func (t *Taxonomy) Contains(tag string) bool {
	for _, v := range t.Vocabulary() {
		if v == tag {
			return true
		}
	}
	return false
}

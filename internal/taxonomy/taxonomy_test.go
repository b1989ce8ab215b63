package taxonomy

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/tags"
)

func TestBuild(t *testing.T) {
	proposal := models.Taxonomy{
		CoreConcepts:  []string{"Attention", "#ethics"},
		SpecialTopics: []string{"topics/Attention Economy", "ethics", "persuasive_design"},
		Outliers:      []string{"Persuasive Design", "stoicism"},
		Hierarchy: []models.Relation{
			{Parent: "Philosophy", Children: []string{"Ethics", "stoicism"}},
			{Parent: "philosophy", Children: []string{"freedom"}},
			{Parent: "  ", Children: []string{"ignored"}},
		},
	}
	got := Build([]string{"Freedom", "attention"}, proposal)

	want := models.Taxonomy{
		CoreConcepts:  []string{"attention", "ethics", "philosophy"},
		SpecialTopics: []string{"attention-economy", "persuasive-design", "freedom"},
		Outliers:      []string{"stoicism"},
		Hierarchy: []models.Relation{
			{Parent: "philosophy", Children: []string{"ethics", "stoicism", "freedom"}},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Build =\n%+v\nwant\n%+v", got, want)
	}
}

func TestBuild_EmptyProposal(t *testing.T) {
	got := Build([]string{"#Focus", "focus", "deep work"}, models.Taxonomy{})
	if len(got.CoreConcepts) != 0 || len(got.Outliers) != 0 {
		t.Errorf("unexpected tiers: %+v", got)
	}
	if want := []string{"focus", "deep-work"}; !reflect.DeepEqual(got.SpecialTopics, want) {
		t.Errorf("SpecialTopics = %v, want %v", got.SpecialTopics, want)
	}
}

// Every seed tag survives and no tag sits in two tiers, whatever the proposal.
func TestBuild_SeedTagsAlwaysPresent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := []string{
		"attention", "#Ethics", "topics/freedom", "Deep Work", "deep_work", "", "  ", "#",
		"a/b/c", "--", "Technology", "política", "x,y", "focus", "FOCUS", "#topics/",
	}
	pick := func() []string {
		n := rng.Intn(6)
		out := make([]string, n)
		for i := range out {
			out[i] = pool[rng.Intn(len(pool))]
		}
		return out
	}

	for i := 0; i < 500; i++ {
		seed := pick()
		proposal := models.Taxonomy{
			CoreConcepts:  pick(),
			SpecialTopics: pick(),
			Outliers:      pick(),
		}
		for j := rng.Intn(3); j > 0; j-- {
			proposal.Hierarchy = append(proposal.Hierarchy, models.Relation{
				Parent:   pool[rng.Intn(len(pool))],
				Children: pick(),
			})
		}

		got := Build(seed, proposal)

		for _, s := range tags.Dedupe(seed) {
			if !got.Contains(s) {
				t.Fatalf("seed %q missing from %+v (seed %v, proposal %+v)", s, got, seed, proposal)
			}
		}
		seen := make(map[string]bool)
		for _, v := range got.Vocabulary() {
			if v == "" || seen[v] {
				t.Fatalf("tag %q empty or repeated in %+v", v, got)
			}
			seen[v] = true
		}
		for _, rel := range got.Hierarchy {
			if !contains(got.CoreConcepts, rel.Parent) {
				t.Fatalf("parent %q not a core concept in %+v", rel.Parent, got)
			}
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

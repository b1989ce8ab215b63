// Package taxonomy builds the tiered tag vocabulary shared by all quotes of
// one source.
package taxonomy

import (
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/tags"
)

// Build merges the required seed tags with a proposed taxonomy. Tier tags are
// normalized, hierarchy parents are promoted to core concepts, a tag appears
// in at most one tier (core, then special, then outlier) and any seed tag the
// proposal left out is added to the special topics.
func Build(seed []string, proposal models.Taxonomy) models.Taxonomy {
	var out models.Taxonomy
	seen := make(map[string]struct{})
	add := func(tier *[]string, tag string) {
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		*tier = append(*tier, tag)
	}

	out.CoreConcepts = []string{}
	out.SpecialTopics = []string{}
	out.Outliers = []string{}

	for _, t := range tags.Dedupe(proposal.CoreConcepts) {
		add(&out.CoreConcepts, t)
	}
	relations := make(map[string]int)
	for _, rel := range proposal.Hierarchy {
		parent := tags.Normalize(rel.Parent)
		if parent == "" {
			continue
		}
		add(&out.CoreConcepts, parent)
		if i, ok := relations[parent]; ok {
			merged := append(out.Hierarchy[i].Children, rel.Children...)
			out.Hierarchy[i].Children = tags.Dedupe(merged)
			continue
		}
		relations[parent] = len(out.Hierarchy)
		out.Hierarchy = append(out.Hierarchy, models.Relation{
			Parent:   parent,
			Children: tags.Dedupe(rel.Children),
		})
	}
	for _, t := range tags.Dedupe(proposal.SpecialTopics) {
		add(&out.SpecialTopics, t)
	}
	for _, t := range tags.Dedupe(proposal.Outliers) {
		add(&out.Outliers, t)
	}
	for _, t := range tags.Dedupe(seed) {
		add(&out.SpecialTopics, t)
	}
	return out
}

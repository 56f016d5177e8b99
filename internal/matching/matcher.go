// Package matching groups VideoHashes into duplicate clusters: self-match
// connected components, reference-match lookups, and the search-unique
// complement. Output ordering is deterministic for a given input set.
package matching

import (
	"math"
	"sort"

	"vidsift/pkg/vhash"
)

// bucketThreshold is the corpus size above which the pairwise scan is
// pre-pruned by quantized-duration buckets.
const bucketThreshold = 10_000

// Options tune the match predicate.
type Options struct {
	Tau               float64
	DurationTolerance float64
	SpatialWeight     float64
	TemporalWeight    float64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Tau:               0.25,
		DurationTolerance: 0.05,
		SpatialWeight:     0.7,
		TemporalWeight:    0.3,
	}
}

// Group is one duplicate cluster. Duplicates are sorted by path and
// Distances aligns with them: Distances[i] is the combined distance from
// the reference to Duplicates[i].
type Group struct {
	Reference  string    `json:"reference"`
	Duplicates []string  `json:"duplicates"`
	Distances  []float64 `json:"distances"`
}

// Matcher compares and clusters fingerprints.
type Matcher struct {
	opts Options
}

// New returns a Matcher; zero options fall back to the defaults.
func New(opts Options) *Matcher {
	def := DefaultOptions()
	if opts.Tau <= 0 {
		opts.Tau = def.Tau
	}
	if opts.DurationTolerance <= 0 {
		opts.DurationTolerance = def.DurationTolerance
	}
	if opts.SpatialWeight == 0 && opts.TemporalWeight == 0 {
		opts.SpatialWeight = def.SpatialWeight
		opts.TemporalWeight = def.TemporalWeight
	}
	return &Matcher{opts: opts}
}

// Distance returns the combined distance between two hashes under the
// matcher's weights.
func (m *Matcher) Distance(a, b *vhash.VideoHash) float64 {
	return vhash.Distance(a, b, vhash.DistanceOpts{
		DurationTolerance: m.opts.DurationTolerance,
		SpatialWeight:     m.opts.SpatialWeight,
		TemporalWeight:    m.opts.TemporalWeight,
	})
}

// Matches reports whether two hashes are duplicates under tau.
func (m *Matcher) Matches(a, b *vhash.VideoHash) bool {
	return m.Distance(a, b) <= m.opts.Tau
}

// SelfMatch partitions the set into maximal connected components under the
// match relation. Every returned group has at least two members, names a
// reference (the member with minimal distance sum to the others), and no
// hash appears in more than one group.
func (m *Matcher) SelfMatch(hashes []*vhash.VideoHash) []Group {
	sorted := sortedByPath(hashes)
	n := len(sorted)
	if n < 2 {
		return nil
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for _, pair := range m.candidatePairs(sorted) {
		if m.Matches(sorted[pair[0]], sorted[pair[1]]) {
			union(pair[0], pair[1])
		}
	}

	components := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := find(i)
		components[root] = append(components[root], i)
	}

	var groups []Group
	for _, members := range components {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, m.buildGroup(sorted, members))
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Reference < groups[j].Reference
	})
	return groups
}

// ReferenceMatch returns one group per reference that has at least one
// candidate within tau. Candidates may appear in several groups.
func (m *Matcher) ReferenceMatch(candidates, refs []*vhash.VideoHash) []Group {
	sortedRefs := sortedByPath(refs)
	sortedCands := sortedByPath(candidates)

	var groups []Group
	for _, ref := range sortedRefs {
		var dups []string
		var dists []float64
		for _, c := range sortedCands {
			if c.Path == ref.Path {
				continue
			}
			if d := m.Distance(ref, c); d <= m.opts.Tau {
				dups = append(dups, c.Path)
				dists = append(dists, d)
			}
		}
		if len(dups) > 0 {
			groups = append(groups, Group{
				Reference:  ref.Path,
				Duplicates: dups,
				Distances:  dists,
			})
		}
	}
	return groups
}

// SearchUnique returns the hashes that belong to no self-match group,
// sorted by path. Grouped members plus the returned set partition the
// input.
func (m *Matcher) SearchUnique(hashes []*vhash.VideoHash) []*vhash.VideoHash {
	grouped := make(map[string]struct{})
	for _, g := range m.SelfMatch(hashes) {
		grouped[g.Reference] = struct{}{}
		for _, p := range g.Duplicates {
			grouped[p] = struct{}{}
		}
	}

	var unique []*vhash.VideoHash
	for _, h := range sortedByPath(hashes) {
		if _, ok := grouped[h.Path]; !ok {
			unique = append(unique, h)
		}
	}
	return unique
}

// buildGroup elects the reference (minimal distance sum, ties by path) and
// assembles the sorted member list.
func (m *Matcher) buildGroup(sorted []*vhash.VideoHash, members []int) Group {
	sort.Ints(members)

	bestIdx := members[0]
	bestSum := math.Inf(1)
	for _, i := range members {
		var sum float64
		for _, j := range members {
			if i == j {
				continue
			}
			sum += m.Distance(sorted[i], sorted[j])
		}
		// Members are path-ordered, so a strict improvement keeps the
		// lexicographically first path on ties.
		if sum < bestSum {
			bestSum = sum
			bestIdx = i
		}
	}

	ref := sorted[bestIdx]
	group := Group{Reference: ref.Path}
	for _, i := range members {
		if i == bestIdx {
			continue
		}
		group.Duplicates = append(group.Duplicates, sorted[i].Path)
		group.Distances = append(group.Distances, m.Distance(ref, sorted[i]))
	}
	return group
}

// candidatePairs enumerates the index pairs worth a distance computation.
// Small corpora get the full pairwise scan (the duration gate prunes
// cheaply); large corpora are bucketed by quantized duration first, with
// adjacent buckets included so gate-passing pairs never straddle a
// boundary unseen.
func (m *Matcher) candidatePairs(sorted []*vhash.VideoHash) [][2]int {
	n := len(sorted)
	var pairs [][2]int

	// A tolerance of 1 lets every pair through the gate, so buckets would
	// prune nothing.
	if n <= bucketThreshold || m.opts.DurationTolerance >= 1 {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairs = append(pairs, [2]int{i, j})
			}
		}
		return pairs
	}

	// Ten buckets per factor of (1 + tolerance) in duration.
	logStep := math.Log1p(m.opts.DurationTolerance) / 10
	// A gate-passing pair has a log-duration ratio of at most
	// -ln(1 - tolerance), so its bucket indices differ by at most reach
	// (11 at the 0.05 default).
	reach := int(math.Ceil(-math.Log1p(-m.opts.DurationTolerance) / logStep))
	buckets := make(map[int][]int)
	for i, h := range sorted {
		b := int(math.Log(float64(h.DurationMS)) / logStep)
		buckets[b] = append(buckets[b], i)
	}

	seen := make(map[[2]int]struct{})
	add := func(i, j int) {
		if i > j {
			i, j = j, i
		}
		key := [2]int{i, j}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		pairs = append(pairs, key)
	}

	for b, members := range buckets {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				add(members[x], members[y])
			}
		}
		// Spanning reach neighbor buckets on one side covers every
		// candidate.
		for off := 1; off <= reach; off++ {
			for _, i := range members {
				for _, j := range buckets[b+off] {
					add(i, j)
				}
			}
		}
	}
	return pairs
}

func sortedByPath(hashes []*vhash.VideoHash) []*vhash.VideoHash {
	sorted := make([]*vhash.VideoHash, 0, len(hashes))
	seen := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		if h == nil {
			continue
		}
		if _, ok := seen[h.Path]; ok {
			continue
		}
		seen[h.Path] = struct{}{}
		sorted = append(sorted, h)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	return sorted
}

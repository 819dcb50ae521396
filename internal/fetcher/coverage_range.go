package fetcher

import (
	"cmp"
	"slices"
)

// CoverageRange is an inclusive block range whose logs have been fetched.
type CoverageRange struct {
	FromBlock uint64
	ToBlock   uint64
}

// IsCovered checks if the entire range [from, to] lies inside one of the merged coverage ranges.
func IsCovered(from, to uint64, coverage []CoverageRange) bool {
	for _, r := range coverage {
		if r.FromBlock <= from && r.ToBlock >= to {
			return true
		}
	}

	return false
}

// AddCoverage adds [from, to] to coverage, merging overlapping and adjacent ranges.
func AddCoverage(coverage []CoverageRange, from, to uint64) []CoverageRange {
	merged := append(slices.Clone(coverage), CoverageRange{FromBlock: from, ToBlock: to})
	slices.SortFunc(merged, func(a, b CoverageRange) int { return cmp.Compare(a.FromBlock, b.FromBlock) })

	out := merged[:1]
	for _, r := range merged[1:] {
		last := &out[len(out)-1]
		if r.FromBlock <= last.ToBlock+1 {
			last.ToBlock = max(last.ToBlock, r.ToBlock)
			continue
		}
		out = append(out, r)
	}

	return out
}

// CoverageBefore keeps the part of coverage below block.
func CoverageBefore(coverage []CoverageRange, block uint64) []CoverageRange {
	var kept []CoverageRange
	for _, r := range coverage {
		if r.FromBlock >= block {
			continue
		}
		r.ToBlock = min(r.ToBlock, block-1)
		kept = append(kept, r)
	}

	return kept
}

// CoverageAfter keeps the part of coverage above block.
func CoverageAfter(coverage []CoverageRange, block uint64) []CoverageRange {
	var kept []CoverageRange
	for _, r := range coverage {
		if r.ToBlock <= block {
			continue
		}
		r.FromBlock = max(r.FromBlock, block+1)
		kept = append(kept, r)
	}

	return kept
}

package search

import "sort"

// Range is an inclusive row range within one row group.
type Range struct {
	Start uint32
	End   uint32
}

// Combined is combine_and/combine_or's result (spec §6): row group ids
// mapped to their canonicalized, non-overlapping, ascending row ranges.
// Callers combine result sets already scoped to one column — mixing
// multiple columns' matches into one combine call loses which column each
// range belongs to.
type Combined struct {
	RowGroups map[uint16][]Range
}

// toRanges flattens one Search result into row-group-keyed ranges, in
// whatever order matches arrived in.
func toRanges(matches []Match) map[uint16][]Range {
	out := make(map[uint16][]Range, len(matches))
	for _, m := range matches {
		out[m.RowGroup] = append(out[m.RowGroup], Range{Start: m.Row, End: m.End()})
	}
	return out
}

// canonicalizeRanges sorts a row group's ranges and merges every pair that
// overlaps or touches end-to-end, the same run-length merge rule §3 uses
// for on-disk occurrences. This is what makes combine_or(A, A) and
// combine_and(A, A) both reduce to A's own canonical form (spec §8's
// idempotence laws), rather than a literal duplicate of A's ranges.
func canonicalizeRanges(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := make([]Range, 0, len(sorted))
	cur := sorted[0]
	for _, r := range sorted[1:] {
		if r.Start > cur.End+1 {
			out = append(out, cur)
			cur = r
			continue
		}
		if r.End > cur.End {
			cur.End = r.End
		}
	}
	return append(out, cur)
}

// CombineOr unions any number of Search results per row group: a row
// matches if at least one input result covers it.
func CombineOr(results ...[]Match) Combined {
	merged := make(map[uint16][]Range)
	for _, matches := range results {
		for rg, ranges := range toRanges(matches) {
			merged[rg] = append(merged[rg], ranges...)
		}
	}
	out := make(map[uint16][]Range, len(merged))
	for rg, ranges := range merged {
		out[rg] = canonicalizeRanges(ranges)
	}
	return Combined{RowGroups: out}
}

// CombineAnd intersects any number of Search results per row group: a row
// matches only if every input result covers it. A row group absent from
// any one input contributes nothing to the output.
func CombineAnd(results ...[]Match) Combined {
	out := Combined{RowGroups: map[uint16][]Range{}}
	if len(results) == 0 {
		return out
	}

	canon := make([]map[uint16][]Range, len(results))
	for i, matches := range results {
		grouped := toRanges(matches)
		c := make(map[uint16][]Range, len(grouped))
		for rg, ranges := range grouped {
			c[rg] = canonicalizeRanges(ranges)
		}
		canon[i] = c
	}

	for rg, ranges := range canon[0] {
		cur := ranges
		for _, other := range canon[1:] {
			cur = intersectRanges(cur, other[rg])
			if len(cur) == 0 {
				break
			}
		}
		if len(cur) > 0 {
			out.RowGroups[rg] = cur
		}
	}
	return out
}

// intersectRanges returns the overlap of two already-canonical (sorted,
// non-overlapping) range lists via a merge-style sweep.
func intersectRanges(a, b []Range) []Range {
	var out []Range
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := a[i].Start
		if b[j].Start > start {
			start = b[j].Start
		}
		end := a[i].End
		if b[j].End < end {
			end = b[j].End
		}
		if start <= end {
			out = append(out, Range{Start: start, End: end})
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return out
}

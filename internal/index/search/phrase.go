package search

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/grafana/parquet-keyword-index/internal/index/artifact"
	"github.com/grafana/parquet-keyword-index/internal/index/load"
	"github.com/grafana/parquet-keyword-index/internal/tokenize"
)

// MaxParentChainDepth bounds how far a phrase match walks up a keyword's
// derivation chain before giving up (spec §9's supplemented constant): a
// cell can only ever produce a chain at most NumLevels deep, so this is a
// generous ceiling against a corrupt or adversarial parent offset cycling
// back on itself.
const MaxParentChainDepth = 50

// RowMatch is one phrase occurrence candidate: a specific (column, row
// group, row), not a run-length range, since phrase verification is
// necessarily per-row (each row's own derivation chain must be walked).
type RowMatch struct {
	Column   uint32
	RowGroup uint16
	Row      uint32
}

// Result is phrase search's externally visible outcome (spec §6's
// Result{query, found, tokens, verified, needs_verification}). Verified rows
// have been proven, purely from the index, to contain phrase as a substring
// of the original cell value. NeedsVerification rows have all their tokens
// co-occurring at the right position but the index couldn't resolve the
// parent chain far enough to confirm or reject them outright — a caller
// that needs certainty must re-read those rows from the source Parquet
// file.
type Result struct {
	Query             string
	Tokens            []string
	Found             bool
	Verified          []RowMatch
	NeedsVerification []RowMatch
}

// PhraseSearcher answers multi-token phrase lookups (spec §4.7): the phrase
// is re-split with the same tokenizer a build uses, each resulting leaf
// token is looked up independently, candidate rows are intersected across
// all leaves, and each candidate is verified by walking its leaves' shared
// parent chain — ruling out rows where the tokens co-occur by coincidence
// rather than because the original cell actually contained the phrase.
type PhraseSearcher struct {
	idx *load.Index
	kw  *KeywordSearcher
}

// NewPhraseSearcher returns a phrase searcher over an already-loaded index.
func NewPhraseSearcher(idx *load.Index) *PhraseSearcher {
	return &PhraseSearcher{idx: idx, kw: NewKeywordSearcher(idx)}
}

// Search returns, for every row where phrase's tokens co-occur in the right
// position, whether the index could confirm the phrase is genuinely a
// substring of the original cell value, optionally restricted to one
// column.
func (s *PhraseSearcher) Search(ctx context.Context, phrase string, column *uint32) (Result, error) {
	leaves := leafTokens(phrase)
	if len(leaves) == 0 {
		return Result{}, errors.New("search: phrase produced no tokens")
	}

	tokens := make([]string, len(leaves))
	for i, t := range leaves {
		tokens[i] = t.Text
	}
	result := Result{Query: phrase, Tokens: tokens}

	if len(leaves) == 1 && leaves[0].Text == phrase {
		matches, err := s.kw.Search(ctx, leaves[0].Text, column)
		if err != nil {
			return Result{}, err
		}
		result.Verified = expandRows(matches)
		result.Found = len(result.Verified) > 0
		return result, nil
	}

	perLeaf := make([][]Match, len(leaves))
	for i, tok := range leaves {
		matches, err := s.kw.Search(ctx, tok.Text, column)
		if err != nil {
			return Result{}, errors.Wrapf(err, "search: lookup phrase token %q", tok.Text)
		}
		if len(matches) == 0 {
			return result, nil
		}
		perLeaf[i] = matches
	}

	candidates := candidateRows(perLeaf)
	if len(candidates) == 0 {
		return result, nil
	}

	minLevel := phraseMinDelimiterLevel(phrase)
	for _, c := range candidates {
		outcome, err := s.verify(ctx, phrase, perLeaf, c, minLevel)
		if err != nil {
			return Result{}, err
		}
		switch outcome {
		case outcomeConfirmed:
			result.Verified = append(result.Verified, c.RowMatch())
		case outcomeNeedsVerification:
			result.NeedsVerification = append(result.NeedsVerification, c.RowMatch())
		}
	}
	result.Found = len(result.Verified) > 0 || len(result.NeedsVerification) > 0
	return result, nil
}

// candidate is one (column, row group, row) position every leaf's match
// set covers.
type candidate struct {
	Column   uint32
	RowGroup uint16
	Row      uint32
}

func (c candidate) RowMatch() RowMatch {
	return RowMatch{Column: c.Column, RowGroup: c.RowGroup, Row: c.Row}
}

// candidateRows intersects every leaf's match set down to the positions
// every leaf covers, expanding the first (smallest-effort) leaf's ranges
// into individual rows as the enumeration seed.
func candidateRows(perLeaf [][]Match) []candidate {
	seed := perLeaf[0]
	var out []candidate
	for _, m := range seed {
		for row := m.Row; row <= m.End(); row++ {
			c := candidate{Column: m.Column, RowGroup: m.RowGroup, Row: row}
			if coveredByAll(perLeaf[1:], c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func coveredByAll(rest [][]Match, c candidate) bool {
	for _, matches := range rest {
		found := false
		for _, m := range matches {
			if m.Column == c.Column && m.RowGroup == c.RowGroup && m.Covers(c.Row) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// verifyOutcome is the confirm/recurse/reject result of walking one
// candidate's parent chain (spec §4.7 step 5).
type verifyOutcome int

const (
	// outcomeRejected means the chain was fully walked (or pruned) without
	// ever finding phrase as a substring of an ancestor: a coincidental
	// co-occurrence, not a real phrase match.
	outcomeRejected verifyOutcome = iota
	// outcomeConfirmed means some ancestor's keyword text contains phrase
	// as a substring: the original cell genuinely held the phrase.
	outcomeConfirmed
	// outcomeNeedsVerification means the index couldn't resolve the chain
	// far enough to decide either way — a secondary Parquet read is
	// required.
	outcomeNeedsVerification
)

// verify walks candidate row c's shared parent chain to decide whether
// phrase genuinely derives from one original cell value there (spec §4.7
// step 5). Leaves that don't all share one immediate parent offset, or
// whose chain can't be resolved, come back needs_verification rather than
// being silently dropped. At each ascent step, before even fetching the
// next ancestor, the join level the candidate is about to cross is checked
// against minLevel (phrase's own coarsest delimiter level): an ancestor
// reached by a strictly finer split than the phrase itself requires can
// never validly contain it, so the walk stops there and rejects instead of
// continuing to climb.
func (s *PhraseSearcher) verify(ctx context.Context, phrase string, perLeaf [][]Match, c candidate, minLevel int) (verifyOutcome, error) {
	matches := make([]Match, len(perLeaf))
	for i := range perLeaf {
		m, ok := matchAt(perLeaf[i], c)
		if !ok {
			return outcomeNeedsVerification, nil
		}
		matches[i] = m
	}

	offset := matches[0].ParentOffset
	for _, m := range matches[1:] {
		if m.ParentOffset != offset {
			return outcomeNeedsVerification, nil
		}
	}
	if offset == artifact.NoParentOffset {
		// Every leaf is itself a root token with no shared ancestor to test
		// containment against; the index alone can't decide this one.
		return outcomeNeedsVerification, nil
	}
	joinMask := matches[0].SplitsMatched

	for depth := 0; depth < MaxParentChainDepth; depth++ {
		if joinLevel, ok := tokenize.ParentSplitLevel(tokenize.SplitMask(joinMask)); ok && joinLevel > minLevel {
			return outcomeRejected, nil
		}

		ancestorText, ok := s.idx.KeywordAtOffset(offset)
		if !ok {
			return outcomeNeedsVerification, nil
		}
		entry, found, err := s.idx.FindMetadata(ctx, ancestorText)
		if err != nil {
			return outcomeRejected, errors.Wrapf(err, "search: find metadata for ancestor %q", ancestorText)
		}
		if !found {
			return outcomeNeedsVerification, nil
		}
		if strings.Contains(ancestorText, phrase) {
			return outcomeConfirmed, nil
		}

		blob, err := s.idx.LoadDataBlob(ctx, entry)
		if err != nil {
			return outcomeRejected, errors.Wrapf(err, "search: load data blob for ancestor %q", ancestorText)
		}
		bucket, ok := columnOrAggregate(blob, c.Column)
		if !ok {
			return outcomeNeedsVerification, nil
		}
		occ, ok := findOccurrenceCovering(bucket, c.RowGroup, c.Row)
		if !ok {
			return outcomeNeedsVerification, nil
		}
		if occ.ParentOffset == artifact.NoParentOffset {
			return outcomeRejected, nil
		}

		offset = occ.ParentOffset
		joinMask = occ.SplitsMatched
	}
	return outcomeNeedsVerification, nil
}

// phraseMinDelimiterLevel returns the coarsest (lowest-numbered) delimiter
// level whose character set appears anywhere in phrase. It bounds how far a
// candidate's parent chain may legitimately ascend: an ancestor cut away by
// a finer split than this was never a candidate to contain the whole
// phrase.
func phraseMinDelimiterLevel(phrase string) int {
	for level := 0; level < tokenize.NumLevels; level++ {
		if strings.ContainsAny(phrase, tokenize.Delimiters(level)) {
			return level
		}
	}
	return tokenize.NumLevels - 1
}

func matchAt(matches []Match, c candidate) (Match, bool) {
	for _, m := range matches {
		if m.Column == c.Column && m.RowGroup == c.RowGroup && m.Covers(c.Row) {
			return m, true
		}
	}
	return Match{}, false
}

// leafTokens re-splits phrase the same way a cell is tokenized at build
// time, then keeps only the tokens that are never themselves a parent of
// another token — the finest-grained pieces, in left-to-right order, that
// together reconstruct the phrase.
func leafTokens(phrase string) []tokenize.Token {
	tokens := tokenize.Tokens(phrase)
	isParent := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if t.HasParent {
			isParent[t.Parent] = true
		}
	}
	leaves := make([]tokenize.Token, 0, len(tokens))
	for _, t := range tokens {
		if !isParent[t.Text] {
			leaves = append(leaves, t)
		}
	}
	return leaves
}

func expandRows(matches []Match) []RowMatch {
	var out []RowMatch
	for _, m := range matches {
		for row := m.Row; row <= m.End(); row++ {
			out = append(out, RowMatch{Column: m.Column, RowGroup: m.RowGroup, Row: row})
		}
	}
	return out
}

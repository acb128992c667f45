// Package filter implements the per-column and global keyword filters of
// spec §4.3: an exact sorted-set for small keyword vocabularies, or a
// space-efficient Bloom filter for large ones, both answering
// might_contain with no false negatives.
package filter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/willf/bloom"
)

// MinKeywordsForBloom is the §4.3 threshold: below it, use an exact set.
const MinKeywordsForBloom = 100

// DefaultErrorRate is the target false positive rate (ε) used when a
// caller doesn't configure one.
const DefaultErrorRate = 0.01

const (
	tagExact byte = 0
	tagBloom byte = 1
)

// Filter is either an ExactSet or a Bloom filter over one column's (or the
// whole index's) keyword vocabulary.
type Filter struct {
	exact []string // sorted; non-nil iff this is an exact set
	bloom *bloom.BloomFilter
	m, k  uint
}

// Build chooses ExactSet vs Bloom per §4.3's size threshold and constructs
// the filter over keywords at the given target false-positive rate.
func Build(keywords []string, errorRate float64) *Filter {
	if len(keywords) < MinKeywordsForBloom {
		exact := make([]string, len(keywords))
		copy(exact, keywords)
		sort.Strings(exact)
		return &Filter{exact: exact}
	}

	m, k := bloomParams(len(keywords), errorRate)
	bf := bloom.New(m, k)
	bs := bf.BitSet()
	for _, kw := range keywords {
		for seed := uint32(0); seed < uint32(k); seed++ {
			bs.Set(uint(hashPosition(kw, seed, uint64(m))))
		}
	}
	return &Filter{bloom: bf, m: m, k: k}
}

// bloomParams implements §4.3's m/k derivation:
// m = ceil(-n*ln(eps)/(ln2)^2), k = max(1, ceil((m/n)*ln2)).
func bloomParams(n int, errorRate float64) (m, k uint) {
	fn := float64(n)
	mf := math.Ceil(-fn * math.Log(errorRate) / (math.Ln2 * math.Ln2))
	kf := math.Ceil((mf / fn) * math.Ln2)
	if kf < 1 {
		kf = 1
	}
	return uint(mf), uint(kf)
}

// hashPosition derives one of the k bit positions for keyword: an
// independent xxhash over (seed, keyword) for each seed, reduced mod m.
func hashPosition(keyword string, seed uint32, m uint64) uint64 {
	h := xxhash.New()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], seed)
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(keyword))
	return h.Sum64() % m
}

// MightContain reports whether keyword might be present: false means
// definitely absent, true means possibly present. An ExactSet never
// returns a false positive.
func (f *Filter) MightContain(keyword string) bool {
	if f == nil {
		return false
	}
	if f.exact != nil {
		i := sort.SearchStrings(f.exact, keyword)
		return i < len(f.exact) && f.exact[i] == keyword
	}
	bs := f.bloom.BitSet()
	for seed := uint32(0); seed < uint32(f.k); seed++ {
		if !bs.Test(uint(hashPosition(keyword, seed, uint64(f.m)))) {
			return false
		}
	}
	return true
}

// IsExact reports whether this filter is an exact set (vs. a Bloom filter).
func (f *Filter) IsExact() bool {
	return f != nil && f.exact != nil
}

// Marshal encodes the filter for the filters artifact: a one-byte tag
// followed by either the sorted keyword list or the Bloom filter's own
// wire format (so readers get the library's bitset framing directly).
func (f *Filter) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if f.exact != nil {
		buf.WriteByte(tagExact)
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(f.exact))); err != nil {
			return nil, err
		}
		for _, kw := range f.exact {
			if err := binary.Write(&buf, binary.LittleEndian, uint32(len(kw))); err != nil {
				return nil, err
			}
			buf.WriteString(kw)
		}
		return buf.Bytes(), nil
	}

	buf.WriteByte(tagBloom)
	if _, err := f.bloom.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("filter: marshal bloom: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a filter previously produced by Marshal.
func Unmarshal(data []byte) (*Filter, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("filter: empty payload")
	}
	tag, rest := data[0], data[1:]
	switch tag {
	case tagExact:
		r := bytes.NewReader(rest)
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("filter: read exact set length: %w", err)
		}
		exact := make([]string, 0, n)
		for i := uint32(0); i < n; i++ {
			var l uint32
			if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
				return nil, fmt.Errorf("filter: read exact set entry length: %w", err)
			}
			b := make([]byte, l)
			if _, err := r.Read(b); err != nil {
				return nil, fmt.Errorf("filter: read exact set entry: %w", err)
			}
			exact = append(exact, string(b))
		}
		return &Filter{exact: exact}, nil
	case tagBloom:
		bf := &bloom.BloomFilter{}
		if _, err := bf.ReadFrom(bytes.NewReader(rest)); err != nil {
			return nil, fmt.Errorf("filter: read bloom filter: %w", err)
		}
		return &Filter{bloom: bf, m: bf.Cap(), k: bf.K()}, nil
	default:
		return nil, fmt.Errorf("filter: unknown tag %d", tag)
	}
}

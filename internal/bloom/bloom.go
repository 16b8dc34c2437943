// Package bloom implements the small fixed-size Bloom filter used to record
// self-invalidating class and id names without materializing sets.
package bloom

import (
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

// KeyBits is the log2 of the filter size in bits.
const KeyBits = 14

const (
	size    = 1 << KeyBits
	keyMask = size - 1
)

// Filter is a two-probe Bloom filter of 2^KeyBits bits. False positives
// are possible, false negatives are not.
type Filter struct {
	bits [size / 64]uint64
}

// New returns an empty filter.
func New() *Filter {
	return &Filter{}
}

// Key hashes a name with a salt. Distinct salts keep names of different
// kinds, such as classes and ids, apart.
func Key(name string, salt uint64) uint64 {
	return xxhash.Sum64String(name) * salt
}

func probes(key uint64) (uint64, uint64) {
	return key & keyMask, (key >> 32) & keyMask
}

// Add inserts key.
func (f *Filter) Add(key uint64) {
	a, b := probes(key)
	f.bits[a/64] |= 1 << (a % 64)
	f.bits[b/64] |= 1 << (b % 64)
}

// MayContain reports whether key may have been added.
func (f *Filter) MayContain(key uint64) bool {
	a, b := probes(key)
	return f.bits[a/64]&(1<<(a%64)) != 0 && f.bits[b/64]&(1<<(b%64)) != 0
}

// Union adds every key of o to f.
func (f *Filter) Union(o *Filter) {
	for i := range f.bits {
		f.bits[i] |= o.bits[i]
	}
}

// Clone returns a copy of f.
func (f *Filter) Clone() *Filter {
	c := *f
	return &c
}

// PopCount returns the number of bits set, for diagnostics.
func (f *Filter) PopCount() int {
	n := 0
	for _, w := range f.bits {
		n += bits.OnesCount64(w)
	}
	return n
}

package depgraph

import "math/bits"

// bitSet is a fixed-size bit vector over node indices.
type bitSet struct {
	words []uint64
	n     int
}

func newBitSet(n int) bitSet {
	return bitSet{words: make([]uint64, (n+63)/64), n: n}
}

func (b bitSet) set(i int) {
	b.words[i/64] |= 1 << (uint(i) % 64)
}

func (b bitSet) has(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.words[i/64]&(1<<(uint(i)%64)) != 0
}

func (b bitSet) count() int {
	total := 0
	for _, w := range b.words {
		total += bits.OnesCount64(w)
	}
	return total
}

func (b bitSet) clone() bitSet {
	out := bitSet{words: make([]uint64, len(b.words)), n: b.n}
	copy(out.words, b.words)
	return out
}

func (b bitSet) equals(o bitSet) bool {
	if b.n != o.n {
		return false
	}
	for i, w := range b.words {
		if w != o.words[i] {
			return false
		}
	}
	return true
}

// union returns a new set containing b ∪ o. Both sets must be the same size.
func (b bitSet) union(o bitSet) bitSet {
	out := b.clone()
	for i, w := range o.words {
		out.words[i] |= w
	}
	return out
}

// intersect returns a new set containing b ∩ o.
func (b bitSet) intersect(o bitSet) bitSet {
	out := b.clone()
	for i, w := range o.words {
		out.words[i] &= w
	}
	return out
}

// difference returns a new set containing b \ o.
func (b bitSet) difference(o bitSet) bitSet {
	out := b.clone()
	for i, w := range o.words {
		out.words[i] &^= w
	}
	return out
}

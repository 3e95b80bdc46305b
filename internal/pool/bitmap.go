package pool

import (
	"math/bits"

	fpmath "AMMLedger/internal/math"
)

// tickBitmap tracks initialized ticks, compressed by the pool's tick
// spacing. Each word covers 256 spaced ticks; words are materialized
// lazily since real pools touch a tiny slice of the tick range.
type tickBitmap struct {
	words map[int32][4]uint64
}

func newTickBitmap() *tickBitmap {
	return &tickBitmap{words: make(map[int32][4]uint64)}
}

// floorDiv rounds toward negative infinity, which keeps negative ticks
// in the correct word.
func floorDiv(x, y int32) int32 {
	q := x / y
	if x%y != 0 && (x < 0) != (y < 0) {
		q--
	}
	return q
}

func position(compressed int32) (word int32, bit uint) {
	word = compressed >> 8
	bit = uint(compressed & 255)
	return
}

func (b *tickBitmap) flip(tick, spacing int32) {
	word, bit := position(floorDiv(tick, spacing))
	w := b.words[word]
	w[bit/64] ^= 1 << (bit % 64)
	if w == ([4]uint64{}) {
		delete(b.words, word)
		return
	}
	b.words[word] = w
}

func (b *tickBitmap) isSet(tick, spacing int32) bool {
	word, bit := position(floorDiv(tick, spacing))
	w := b.words[word]
	return w[bit/64]&(1<<(bit%64)) != 0
}

// highestSetAtOrBelow returns the highest set bit index <= bit, or -1.
func highestSetAtOrBelow(w [4]uint64, bit uint) int {
	limb := int(bit / 64)
	mask := ^uint64(0) >> (63 - bit%64)
	for i := limb; i >= 0; i-- {
		v := w[i]
		if i == limb {
			v &= mask
		}
		if v != 0 {
			return i*64 + 63 - bits.LeadingZeros64(v)
		}
	}
	return -1
}

// lowestSetAtOrAbove returns the lowest set bit index >= bit, or -1.
func lowestSetAtOrAbove(w [4]uint64, bit uint) int {
	limb := int(bit / 64)
	mask := ^uint64(0) << (bit % 64)
	for i := limb; i < 4; i++ {
		v := w[i]
		if i == limb {
			v &= mask
		}
		if v != 0 {
			return i*64 + bits.TrailingZeros64(v)
		}
	}
	return -1
}

// nextBelow finds the nearest initialized tick at or below tick. The
// search scans at most skipAhead words past the first; when the budget
// runs out it returns the lower boundary of the scanned range with
// initialized=false so the caller can continue from there.
func (b *tickBitmap) nextBelow(tick, spacing int32, skipAhead uint32) (int32, bool) {
	compressed := floorDiv(tick, spacing)
	word, bit := position(compressed)
	budget := int64(skipAhead)

	for {
		if idx := highestSetAtOrBelow(b.words[word], bit); idx >= 0 {
			return (word*256 + int32(idx)) * spacing, true
		}
		limit := word * 256 * spacing
		if limit < fpmath.MinTick {
			return fpmath.MinTick, false
		}
		if budget == 0 {
			return limit, false
		}
		budget--
		word--
		bit = 255
	}
}

// nextAbove finds the nearest initialized tick strictly above tick,
// with the same skipAhead budget semantics as nextBelow.
func (b *tickBitmap) nextAbove(tick, spacing int32, skipAhead uint32) (int32, bool) {
	compressed := floorDiv(tick, spacing) + 1
	word, bit := position(compressed)
	budget := int64(skipAhead)

	for {
		if idx := lowestSetAtOrAbove(b.words[word], bit); idx >= 0 {
			return (word*256 + int32(idx)) * spacing, true
		}
		limit := (word*256 + 255) * spacing
		if limit > fpmath.MaxTick {
			return fpmath.MaxTick, false
		}
		if budget == 0 {
			return limit, false
		}
		budget--
		word++
		bit = 0
	}
}

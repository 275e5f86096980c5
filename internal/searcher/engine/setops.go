package engine

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/index"
)

// intersectSkip intersects two postings lists, using the skip array of the
// larger list to jump over runs of doc ids below the smaller list's cursor.
// It returns exactly what intersect(a.Docs, b.Docs) returns.
func intersectSkip(a, b *index.PostingsList) []index.DocID {
	if a.Len() == 0 || b.Len() == 0 {
		return []index.DocID{}
	}
	if a.Len() > b.Len() {
		a, b = b, a
	}
	small, large := a.Docs, b.Docs
	skips, step := b.Skips, int(b.SkipStep)

	result := make([]index.DocID, 0, len(small))
	i, j := 0, 0
	for i < len(small) && j < len(large) {
		switch {
		case small[i] == large[j]:
			result = append(result, small[i])
			i++
			j++
		case small[i] < large[j]:
			i++
		default:
			if step > 0 && len(skips) > 0 {
				for k := j / step; k < len(skips) && int(skips[k]) > j && large[skips[k]] <= small[i]; k++ {
					j = int(skips[k])
				}
			}
			for j < len(large) && large[j] < small[i] {
				j++
			}
		}
	}
	return result
}

// intersect is a plain two-pointer merge of sorted lists.
func intersect(a, b []index.DocID) []index.DocID {
	result := make([]index.DocID, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			result = append(result, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return result
}

func union(a, b []index.DocID) []index.DocID {
	result := make([]index.DocID, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			result = append(result, a[i])
			i++
			j++
		case a[i] < b[j]:
			result = append(result, a[i])
			i++
		default:
			result = append(result, b[j])
			j++
		}
	}
	result = append(result, a[i:]...)
	result = append(result, b[j:]...)
	return result
}

// complement returns every id in [0, total) absent from ids.
func complement(ids []index.DocID, total int) []index.DocID {
	present := roaring.BitmapOf(ids...)
	result := make([]index.DocID, 0, max(total-len(ids), 0))
	for id := 0; id < total; id++ {
		if !present.Contains(uint32(id)) {
			result = append(result, index.DocID(id))
		}
	}
	return result
}

// withinDistance reports whether some pair of positions l in left and r in
// right satisfies 0 < r-l <= d when ordered, or 0 < |r-l| <= d otherwise.
// Both slices must be ascending.
func withinDistance(left, right []uint32, d uint32, ordered bool) bool {
	j := 0
	for _, l := range left {
		lo := uint64(l) + 1
		if !ordered {
			lo = uint64(l) - min(uint64(l), uint64(d))
		}
		hi := uint64(l) + uint64(d)
		for j < len(right) && uint64(right[j]) < lo {
			j++
		}
		for k := j; k < len(right) && uint64(right[k]) <= hi; k++ {
			if right[k] != l {
				return true
			}
		}
	}
	return false
}

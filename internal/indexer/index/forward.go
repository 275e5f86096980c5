package index

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
)

// DocID is a dense, zero-based document identifier.
type DocID = uint32

type Document struct {
	ID    DocID  `json:"id"`
	Title string `json:"title"`
	Plot  string `json:"plot"`
}

// ForwardStore holds document bodies and their length statistics. It is
// append-only while building and read-only once loaded.
type ForwardStore struct {
	docs        []Document
	lengths     []uint32
	totalLength uint64
}

func NewForwardStore() *ForwardStore {
	return &ForwardStore{}
}

// Add appends doc and records its length estimate: the number of
// whitespace characters in title+plot, plus one.
func (f *ForwardStore) Add(doc Document) {
	length := estimateLength(doc.Title) + estimateLength(doc.Plot) + 1
	f.docs = append(f.docs, doc)
	f.lengths = append(f.lengths, length)
	f.totalLength += uint64(length)
}

// RestoreForwardStore rebuilds a store from persisted documents and their
// stored lengths. The two slices must be parallel.
func RestoreForwardStore(docs []Document, lengths []uint32) (*ForwardStore, error) {
	if len(docs) != len(lengths) {
		return nil, apperrors.Formatf("forward store has %d documents but %d lengths", len(docs), len(lengths))
	}
	f := &ForwardStore{docs: docs, lengths: lengths}
	for _, l := range lengths {
		f.totalLength += uint64(l)
	}
	return f, nil
}

func (f *ForwardStore) Document(id DocID) (Document, error) {
	if int(id) >= len(f.docs) {
		return Document{}, fmt.Errorf("document %d of %d: %w", id, len(f.docs), apperrors.ErrLookup)
	}
	return f.docs[id], nil
}

// DocLength returns 0 for ids outside the store.
func (f *ForwardStore) DocLength(id DocID) uint32 {
	if int(id) >= len(f.lengths) {
		return 0
	}
	return f.lengths[id]
}

// AvgDocLength returns 1.0 for an empty store.
func (f *ForwardStore) AvgDocLength() float64 {
	if len(f.docs) == 0 || f.totalLength == 0 {
		return 1.0
	}
	return float64(f.totalLength) / float64(len(f.docs))
}

func (f *ForwardStore) Size() int {
	return len(f.docs)
}

func (f *ForwardStore) TotalLength() uint64 {
	return f.totalLength
}

// Documents exposes the stored documents in id order. Callers must not
// modify the returned slice.
func (f *ForwardStore) Documents() []Document {
	return f.docs
}

// Lengths exposes the per-document length array in id order.
func (f *ForwardStore) Lengths() []uint32 {
	return f.lengths
}

// estimateLength counts ASCII whitespace bytes; multi-byte spaces such as
// U+00A0 are not boundaries, matching the tokenizer's ASCII contract.
func estimateLength(s string) uint32 {
	var n uint32
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\v', '\f', '\r':
			n++
		}
	}
	return n
}

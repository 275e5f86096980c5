package index

import (
	"math"
	"sort"
)

// PostingsList holds the documents containing one term in one field.
// Docs is strictly increasing and Positions[i] lists the ascending in-field
// offsets of the term within Docs[i]. Skips, when present, are indices into
// Docs spaced SkipStep apart.
type PostingsList struct {
	Docs      []DocID
	Positions [][]uint32
	Skips     []uint32
	SkipStep  uint32
}

func (p *PostingsList) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Docs)
}

// MaxDoc returns the last doc id and false when the list is empty.
func (p *PostingsList) MaxDoc() (DocID, bool) {
	if p.Len() == 0 {
		return 0, false
	}
	return p.Docs[len(p.Docs)-1], true
}

// Find returns the index of doc within Docs.
func (p *PostingsList) Find(doc DocID) (int, bool) {
	if p.Len() == 0 {
		return 0, false
	}
	i := sort.Search(len(p.Docs), func(i int) bool { return p.Docs[i] >= doc })
	if i < len(p.Docs) && p.Docs[i] == doc {
		return i, true
	}
	return i, false
}

// TermFrequency is the number of stored positions for doc, 0 if absent.
func (p *PostingsList) TermFrequency(doc DocID) int {
	i, ok := p.Find(doc)
	if !ok {
		return 0
	}
	return len(p.Positions[i])
}

// PositionsOf returns the positions recorded for doc.
func (p *PostingsList) PositionsOf(doc DocID) ([]uint32, bool) {
	i, ok := p.Find(doc)
	if !ok {
		return nil, false
	}
	return p.Positions[i], true
}

// BuildSkips sets SkipStep to floor(sqrt(n)) and Skips to every non-zero
// multiple of it below n. Lists of four or fewer docs carry no skips.
func (p *PostingsList) BuildSkips() {
	n := len(p.Docs)
	p.Skips = nil
	p.SkipStep = 0
	if n <= 4 {
		return
	}
	step := uint32(math.Sqrt(float64(n)))
	for step*step > uint32(n) {
		step--
	}
	for (step+1)*(step+1) <= uint32(n) {
		step++
	}
	p.SkipStep = step
	p.Skips = make([]uint32, 0, n/int(step))
	for i := step; i < uint32(n); i += step {
		p.Skips = append(p.Skips, i)
	}
}

// Validate reports why the list is unusable against a store of totalDocs
// documents, or "" when it is consistent.
func (p *PostingsList) Validate(totalDocs int) string {
	if len(p.Docs) != len(p.Positions) {
		return "positions count does not match docs count"
	}
	for i := 1; i < len(p.Docs); i++ {
		if p.Docs[i] <= p.Docs[i-1] {
			return "doc ids not strictly increasing"
		}
	}
	if last, ok := p.MaxDoc(); ok && int(last) >= totalDocs {
		return "doc id beyond document count"
	}
	if len(p.Skips) > 0 && p.SkipStep == 0 {
		return "skips present without a skip step"
	}
	for i, s := range p.Skips {
		if int(s) >= len(p.Docs) || (i > 0 && s <= p.Skips[i-1]) {
			return "skip index out of range"
		}
	}
	return ""
}

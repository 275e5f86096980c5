// Package index holds the in-memory search index: a forward store of
// document bodies and a positional inverted index keyed by term and field.
//
// An Index is built by calling AddDocument with strictly ascending doc ids
// and then BuildSkipPointers once. After that it is never mutated and may be
// read from any number of goroutines without locking.
package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/tokenizer"
)

const (
	FieldTitle = "title"
	FieldPlot  = "plot"
)

// Fields lists the indexed fields in the order they are tokenized.
var Fields = []string{FieldTitle, FieldPlot}

type Index struct {
	Forward  *ForwardStore
	Inverted map[string]map[string]*PostingsList
}

func New() *Index {
	return &Index{
		Forward:  NewForwardStore(),
		Inverted: make(map[string]map[string]*PostingsList),
	}
}

// AddDocument stores doc and appends its postings to every term it holds.
// doc.ID must be greater than every id added before it.
func (idx *Index) AddDocument(doc Document) {
	idx.Forward.Add(doc)
	idx.addField(doc.ID, FieldTitle, doc.Title)
	idx.addField(doc.ID, FieldPlot, doc.Plot)
}

func (idx *Index) addField(id DocID, field, text string) {
	tokens := tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return
	}
	termPositions := make(map[string][]uint32)
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, seen := termPositions[tok.Term]; !seen {
			order = append(order, tok.Term)
		}
		termPositions[tok.Term] = append(termPositions[tok.Term], tok.Position)
	}
	for _, term := range order {
		fields, ok := idx.Inverted[term]
		if !ok {
			fields = make(map[string]*PostingsList, 2)
			idx.Inverted[term] = fields
		}
		list, ok := fields[field]
		if !ok {
			list = &PostingsList{}
			fields[field] = list
		}
		list.Docs = append(list.Docs, id)
		list.Positions = append(list.Positions, termPositions[term])
	}
}

// BuildSkipPointers computes skip arrays for every postings list.
func (idx *Index) BuildSkipPointers() {
	for _, fields := range idx.Inverted {
		for _, list := range fields {
			list.BuildSkips()
		}
	}
}

// Postings returns the list for term in field, or nil.
func (idx *Index) Postings(term, field string) *PostingsList {
	fields, ok := idx.Inverted[term]
	if !ok {
		return nil
	}
	return fields[field]
}

// TermFields returns the per-field postings of term, or nil.
func (idx *Index) TermFields(term string) map[string]*PostingsList {
	return idx.Inverted[term]
}

// Terms returns every indexed term in ascending order.
func (idx *Index) Terms() []string {
	terms := make([]string, 0, len(idx.Inverted))
	for term := range idx.Inverted {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// SortedFields returns the field names of a term's postings in ascending
// order.
func SortedFields(fields map[string]*PostingsList) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Stats struct {
	Documents    int     `json:"documents"`
	Terms        int     `json:"terms"`
	PostingLists int     `json:"posting_lists"`
	Postings     int     `json:"postings"`
	AvgDocLength float64 `json:"avg_doc_length"`
}

func (idx *Index) Stats() Stats {
	s := Stats{
		Documents:    idx.Forward.Size(),
		Terms:        len(idx.Inverted),
		AvgDocLength: idx.Forward.AvgDocLength(),
	}
	for _, fields := range idx.Inverted {
		s.PostingLists += len(fields)
		for _, list := range fields {
			s.Postings += list.Len()
		}
	}
	return s
}

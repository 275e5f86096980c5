package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/index"
)

const (
	DefaultK1          = 1.2
	DefaultB           = 0.75
	DefaultTitleWeight = 5.0
)

type ScoredDoc struct {
	DocID index.DocID `json:"doc_id"`
	Score float64     `json:"score"`
}

// Params are the tunable BM25 parameters for one query.
type Params struct {
	K1          float64 `json:"k1"`
	B           float64 `json:"b"`
	TitleWeight float64 `json:"w_title"`
}

func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB, TitleWeight: DefaultTitleWeight}
}

// Ranker scores documents of a loaded, immutable index with BM25.
type Ranker struct {
	idx       *index.Index
	avgDocLen float64
	totalDocs float64
}

func New(idx *index.Index) *Ranker {
	avg := idx.Forward.AvgDocLength()
	if avg < 1e-9 {
		avg = 1.0
	}
	n := float64(idx.Forward.Size())
	if n == 0 {
		n = 1
	}
	return &Ranker{idx: idx, avgDocLen: avg, totalDocs: n}
}

// Score returns the BM25 score of docID for terms. Ids outside the index
// score 0.
func (r *Ranker) Score(docID index.DocID, terms []string, p Params) float64 {
	if float64(docID) >= r.totalDocs || int(docID) >= r.idx.Forward.Size() {
		return 0
	}
	var score float64
	for _, term := range terms {
		fields := r.idx.TermFields(term)
		if fields == nil {
			continue
		}
		score += r.termScore(docID, fields, r.IDF(term), p)
	}
	return score
}

// Rank scores docs and orders them by descending score, breaking ties by
// ascending DocID.
func (r *Ranker) Rank(docs []index.DocID, terms []string, p Params) []ScoredDoc {
	type termInfo struct {
		fields map[string]*index.PostingsList
		idf    float64
	}
	infos := make([]termInfo, 0, len(terms))
	for _, term := range terms {
		if fields := r.idx.TermFields(term); fields != nil {
			infos = append(infos, termInfo{fields: fields, idf: r.IDF(term)})
		}
	}

	result := make([]ScoredDoc, len(docs))
	for i, doc := range docs {
		var score float64
		if int(doc) < r.idx.Forward.Size() {
			for _, info := range infos {
				score += r.termScore(doc, info.fields, info.idf, p)
			}
		}
		result[i] = ScoredDoc{DocID: doc, Score: score}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	return result
}

// IDF uses the largest per-field document frequency of term and is never
// negative.
func (r *Ranker) IDF(term string) float64 {
	var df int
	for _, list := range r.idx.TermFields(term) {
		df = max(df, list.Len())
	}
	return computeIDF(r.totalDocs, float64(df))
}

// TermFrequency sums the occurrences of a term in doc over all fields, with
// the title field weighted by titleWeight.
func TermFrequency(docID index.DocID, fields map[string]*index.PostingsList, titleWeight float64) float64 {
	var tf float64
	for field, list := range fields {
		n := float64(list.TermFrequency(docID))
		if field == index.FieldTitle {
			n *= titleWeight
		}
		tf += n
	}
	return tf
}

func (r *Ranker) termScore(docID index.DocID, fields map[string]*index.PostingsList, idf float64, p Params) float64 {
	tf := TermFrequency(docID, fields, p.TitleWeight)
	dl := float64(r.idx.Forward.DocLength(docID))
	return idf * computeTFNorm(tf, dl, r.avgDocLen, p.K1, p.B)
}

func computeIDF(totalDocs float64, docFreq float64) float64 {
	idf := math.Log((totalDocs-docFreq+0.5)/(docFreq+0.5) + 1)
	if idf < 0 || math.IsNaN(idf) {
		return 0
	}
	return idf
}

func computeTFNorm(termFreq, docLength, avgDocLength, k1, b float64) float64 {
	if termFreq == 0 {
		return 0
	}
	if avgDocLength < 1e-9 {
		avgDocLength = 1.0
	}
	denominator := termFreq + k1*(1-b+b*docLength/avgDocLength)
	if denominator == 0 {
		return 0
	}
	return (termFreq * (k1 + 1)) / denominator
}

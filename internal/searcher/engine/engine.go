// Package engine evaluates parsed boolean queries against a loaded index
// and orders the matches with BM25.
//
// An Engine never mutates its index, so one Engine may serve any number of
// concurrent queries. Each evaluation keeps its own operand stack.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
)

// operand is one element of the evaluation stack. It has exactly three
// implementations: rawPostings, computedList, and unresolvedTerm.
type operand interface {
	docs() []index.DocID
	sealed()
}

// rawPostings borrows a single field's postings list from the index. Only
// field-qualified terms produce it.
type rawPostings struct {
	term parser.QueryTerm
	list *index.PostingsList
}

// computedList is the owned result of an operator.
type computedList struct {
	ids []index.DocID
}

// unresolvedTerm is a term whose doc ids were gathered from every field (or
// from a missing field) and which keeps the term for proximity matching.
type unresolvedTerm struct {
	term parser.QueryTerm
	ids  []index.DocID
}

func (r rawPostings) docs() []index.DocID    { return r.list.Docs }
func (c computedList) docs() []index.DocID   { return c.ids }
func (u unresolvedTerm) docs() []index.DocID { return u.ids }

func (rawPostings) sealed()    {}
func (computedList) sealed()   {}
func (unresolvedTerm) sealed() {}

// termOf returns the query term an operand still stands for.
func termOf(op operand) (parser.QueryTerm, bool) {
	switch v := op.(type) {
	case rawPostings:
		return v.term, true
	case unresolvedTerm:
		return v.term, true
	}
	return parser.QueryTerm{}, false
}

type Engine struct {
	idx    *index.Index
	ranker *ranker.Ranker
	logger *slog.Logger
}

func New(idx *index.Index) *Engine {
	return &Engine{
		idx:    idx,
		ranker: ranker.New(idx),
		logger: slog.Default().With("component", "query-engine"),
	}
}

func (e *Engine) Index() *index.Index {
	return e.idx
}

func (e *Engine) Ranker() *ranker.Ranker {
	return e.ranker
}

// Search parses query, evaluates it, and returns the matching doc ids by
// descending BM25 score, ties broken by ascending id.
func (e *Engine) Search(query string, p ranker.Params) ([]index.DocID, error) {
	scored, err := e.SearchScored(query, p)
	if err != nil {
		return nil, err
	}
	ids := make([]index.DocID, len(scored))
	for i, sd := range scored {
		ids[i] = sd.DocID
	}
	return ids, nil
}

// SearchScored is Search with the scores kept.
func (e *Engine) SearchScored(query string, p ranker.Params) ([]ranker.ScoredDoc, error) {
	plan, err := parser.Parse(query)
	if err != nil {
		return nil, err
	}
	matches, err := e.Evaluate(plan.RPN)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []ranker.ScoredDoc{}, nil
	}
	return e.ranker.Rank(matches, plan.Terms, p), nil
}

// Evaluate runs a postfix token stream and returns the ascending ids of
// matching documents. Operands left over at the end are joined with AND.
func (e *Engine) Evaluate(rpn []parser.Token) ([]index.DocID, error) {
	stack := make([]operand, 0, len(rpn))
	pop := func(op parser.Operator) (operand, error) {
		if len(stack) == 0 {
			return nil, apperrors.Syntaxf("operator %s is missing an operand", op)
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top, nil
	}

	for _, tok := range rpn {
		switch tok.Kind {
		case parser.KindTerm:
			stack = append(stack, e.resolve(tok.Term))
		case parser.KindFragment:
			stack = append(stack, computedList{ids: []index.DocID{}})
		case parser.KindOperator:
			if tok.Op.Unary() {
				operandVal, err := pop(tok.Op)
				if err != nil {
					return nil, err
				}
				stack = append(stack, computedList{ids: complement(operandVal.docs(), e.idx.Forward.Size())})
				continue
			}
			right, err := pop(tok.Op)
			if err != nil {
				return nil, err
			}
			left, err := pop(tok.Op)
			if err != nil {
				return nil, err
			}
			result, err := e.apply(tok.Op, left, right)
			if err != nil {
				return nil, err
			}
			stack = append(stack, result)
		default:
			return nil, apperrors.Syntaxf("unexpected token %q", tok.Text)
		}
	}

	if len(stack) == 0 {
		return []index.DocID{}, nil
	}
	result := stack[0]
	for _, next := range stack[1:] {
		result = and(result, next)
	}
	return result.docs(), nil
}

func (e *Engine) apply(op parser.Operator, left, right operand) (operand, error) {
	switch op.Kind {
	case parser.OpAnd:
		return and(left, right), nil
	case parser.OpOr:
		return computedList{ids: union(left.docs(), right.docs())}, nil
	case parser.OpNear, parser.OpAdj:
		lt, lok := termOf(left)
		rt, rok := termOf(right)
		if !lok || !rok {
			return nil, apperrors.Syntaxf("%s requires a term on both sides", op)
		}
		ids := e.proximity(lt, rt, intersect(left.docs(), right.docs()), op.Distance, op.Kind == parser.OpAdj)
		return computedList{ids: ids}, nil
	}
	return nil, fmt.Errorf("unknown operator %s: %w", op, apperrors.ErrInternal)
}

func and(left, right operand) operand {
	if l, ok := left.(rawPostings); ok {
		if r, ok := right.(rawPostings); ok {
			return computedList{ids: intersectSkip(l.list, r.list)}
		}
	}
	return computedList{ids: intersect(left.docs(), right.docs())}
}

// resolve turns a query term into a stack operand. A field-qualified term
// with postings in that field borrows the list directly; any other term
// carries the union of its doc ids across the fields it can match.
func (e *Engine) resolve(q parser.QueryTerm) operand {
	fields := e.idx.TermFields(q.Term)
	if q.Field != "" {
		if list := fields[q.Field]; list != nil {
			return rawPostings{term: q, list: list}
		}
		return unresolvedTerm{term: q, ids: []index.DocID{}}
	}
	ids := []index.DocID{}
	for _, field := range index.SortedFields(fields) {
		ids = union(ids, fields[field].Docs)
	}
	return unresolvedTerm{term: q, ids: ids}
}

// proximity keeps the candidates in which left and right occur within d
// positions of each other in the same field.
func (e *Engine) proximity(left, right parser.QueryTerm, candidates []index.DocID, d uint32, ordered bool) []index.DocID {
	leftFields := e.idx.TermFields(left.Term)
	rightFields := e.idx.TermFields(right.Term)
	fields := index.Fields
	if left.Field != "" {
		fields = []string{left.Field}
	}

	result := make([]index.DocID, 0, len(candidates))
	for _, doc := range candidates {
		for _, field := range fields {
			if right.Field != "" && right.Field != field {
				continue
			}
			lp, ok := leftFields[field].PositionsOf(doc)
			if !ok {
				continue
			}
			rp, ok := rightFields[field].PositionsOf(doc)
			if !ok {
				continue
			}
			if withinDistance(lp, rp, d, ordered) {
				result = append(result, doc)
				break
			}
		}
	}
	return result
}

// Package parser turns a boolean query string into a postfix token stream.
//
// Supported syntax: bare terms, field-qualified terms (title:king or
// title : king), parentheses, AND, OR, unary NOT, and the proximity
// operators NEAR and ADJ with an optional /<distance> suffix. Operators are
// recognised only in upper case. Adjacent terms are joined by an implicit
// AND.
package parser

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
)

type Kind int

const (
	KindTerm Kind = iota
	KindOperator
	KindLParen
	KindRParen
	// KindFragment is a field prefix with no term after it, such as the
	// "title:" in "title: (a OR b)", or an operator's operand that
	// normalised to nothing. It is an operand that matches nothing.
	KindFragment
)

type OpKind int

const (
	OpOr OpKind = iota
	OpAnd
	OpNear
	OpAdj
	OpNot
)

// DefaultProximity is the distance used by NEAR and ADJ without a suffix.
const DefaultProximity = 1

type Operator struct {
	Kind     OpKind
	Distance uint32
}

func (o Operator) Precedence() int {
	switch o.Kind {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	case OpNear, OpAdj:
		return 3
	case OpNot:
		return 4
	}
	return 0
}

func (o Operator) Unary() bool {
	return o.Kind == OpNot
}

func (o Operator) String() string {
	switch o.Kind {
	case OpOr:
		return "OR"
	case OpAnd:
		return "AND"
	case OpNot:
		return "NOT"
	case OpNear, OpAdj:
		name := "NEAR"
		if o.Kind == OpAdj {
			name = "ADJ"
		}
		if o.Distance == DefaultProximity {
			return name
		}
		return name + "/" + strconv.FormatUint(uint64(o.Distance), 10)
	}
	return "?"
}

// QueryTerm is a normalised term with an optional field qualifier.
type QueryTerm struct {
	Field string
	Term  string
}

func (q QueryTerm) String() string {
	if q.Field == "" {
		return q.Term
	}
	return q.Field + ":" + q.Term
}

type Token struct {
	Kind Kind
	Text string
	Op   Operator
	Term QueryTerm
}

func (t Token) String() string {
	if t.Kind == KindOperator {
		return t.Op.String()
	}
	if t.Kind == KindTerm {
		return t.Term.String()
	}
	return t.Text
}

func (t Token) termLike() bool {
	return t.Kind == KindTerm
}

// QueryPlan is a parsed query ready for evaluation.
type QueryPlan struct {
	RawQuery string
	RPN      []Token
	// Terms are the distinct terms used for BM25 scoring.
	Terms []string
}

// Parse tokenizes query, fuses field qualifiers, inserts implicit ANDs, and
// converts the result to postfix order.
func Parse(query string) (*QueryPlan, error) {
	tokens, err := Lex(query)
	if err != nil {
		return nil, err
	}
	plan := &QueryPlan{
		RawQuery: query,
		RPN:      ToRPN(InsertImplicitAnd(tokens)),
		Terms:    ScoringTerms(tokens),
	}
	return plan, nil
}

// TokenizeQuery splits s on parentheses, colons, and whitespace. Parentheses
// and colons are kept as their own tokens and double quotes are dropped.
func TokenizeQuery(s string) []string {
	var tokens []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			tokens = append(tokens, buf.String())
			buf.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == ':':
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsSpace(r):
			flush()
		case r == '"':
		default:
			buf.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// Lex runs TokenizeQuery, re-fuses "field : term" sequences into a single
// field-qualified term, and classifies every token. Terms that normalise to
// nothing (stop-words, bare punctuation) become matches-nothing fragments
// when they are the operand of an explicit operator and are dropped
// otherwise.
func Lex(query string) ([]Token, error) {
	raw := TokenizeQuery(query)
	tokens := make([]Token, 0, len(raw))
	var empty []int
	for i := 0; i < len(raw); i++ {
		text := raw[i]
		switch text {
		case "(":
			tokens = append(tokens, Token{Kind: KindLParen, Text: text})
			continue
		case ")":
			tokens = append(tokens, Token{Kind: KindRParen, Text: text})
			continue
		case ":":
			tokens = append(tokens, Token{Kind: KindFragment, Text: text})
			continue
		}

		op, isOp, err := parseOperator(text)
		if err != nil {
			return nil, err
		}
		if isOp {
			tokens = append(tokens, Token{Kind: KindOperator, Text: text, Op: op})
			continue
		}

		if i+1 < len(raw) && raw[i+1] == ":" {
			if i+2 < len(raw) && isFusable(raw[i+2]) {
				text = text + ":" + raw[i+2]
				i += 2
			} else {
				tokens = append(tokens, Token{Kind: KindFragment, Text: text + ":"})
				i++
				continue
			}
		}

		term := parseTerm(text)
		if term.Term == "" {
			empty = append(empty, len(tokens))
			tokens = append(tokens, Token{Kind: KindFragment, Text: text})
			continue
		}
		tokens = append(tokens, Token{Kind: KindTerm, Text: text, Term: term})
	}
	return dropEmptyTerms(tokens, empty), nil
}

// dropEmptyTerms removes the empty-term fragments at the given indexes
// unless an explicit operator sits directly before or after them.
func dropEmptyTerms(tokens []Token, empty []int) []Token {
	if len(empty) == 0 {
		return tokens
	}
	drop := make(map[int]bool, len(empty))
	for _, i := range empty {
		nextToOp := (i > 0 && tokens[i-1].Kind == KindOperator) ||
			(i+1 < len(tokens) && tokens[i+1].Kind == KindOperator)
		if !nextToOp {
			drop[i] = true
		}
	}
	out := make([]Token, 0, len(tokens)-len(drop))
	for i, tok := range tokens {
		if !drop[i] {
			out = append(out, tok)
		}
	}
	return out
}

// InsertImplicitAnd places an AND between every pair of adjacent terms.
func InsertImplicitAnd(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens)*2)
	for i, tok := range tokens {
		out = append(out, tok)
		if i+1 < len(tokens) && tok.termLike() && tokens[i+1].termLike() {
			out = append(out, Token{Kind: KindOperator, Text: "AND", Op: Operator{Kind: OpAnd}})
		}
	}
	return out
}

// ToRPN converts infix tokens to postfix with the shunting-yard algorithm.
// An unmatched ")" pops the whole operator stack; an unmatched "(" is
// discarded at the end.
func ToRPN(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	stack := make([]Token, 0, 8)
	for _, tok := range tokens {
		switch tok.Kind {
		case KindOperator:
			if !tok.Op.Unary() {
				for len(stack) > 0 {
					top := stack[len(stack)-1]
					if top.Kind == KindLParen || top.Op.Precedence() < tok.Op.Precedence() {
						break
					}
					out = append(out, top)
					stack = stack[:len(stack)-1]
				}
			}
			stack = append(stack, tok)
		case KindLParen:
			stack = append(stack, tok)
		case KindRParen:
			for len(stack) > 0 && stack[len(stack)-1].Kind != KindLParen {
				out = append(out, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			out = append(out, tok)
		}
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.Kind == KindLParen {
			continue
		}
		out = append(out, top)
	}
	return out
}

// ScoringTerms returns the distinct normalised terms of tokens in order of
// first appearance.
func ScoringTerms(tokens []Token) []string {
	seen := make(map[string]struct{})
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !tok.termLike() {
			continue
		}
		if _, ok := seen[tok.Term.Term]; ok {
			continue
		}
		seen[tok.Term.Term] = struct{}{}
		terms = append(terms, tok.Term.Term)
	}
	return terms
}

// Strings renders tokens for logging and tests.
func Strings(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.String()
	}
	return out
}

func parseOperator(text string) (Operator, bool, error) {
	switch text {
	case "AND":
		return Operator{Kind: OpAnd}, true, nil
	case "OR":
		return Operator{Kind: OpOr}, true, nil
	case "NOT":
		return Operator{Kind: OpNot}, true, nil
	case "NEAR":
		return Operator{Kind: OpNear, Distance: DefaultProximity}, true, nil
	case "ADJ":
		return Operator{Kind: OpAdj, Distance: DefaultProximity}, true, nil
	}
	name, suffix, found := strings.Cut(text, "/")
	if !found || (name != "NEAR" && name != "ADJ") {
		return Operator{}, false, nil
	}
	dist, err := strconv.ParseUint(suffix, 10, 32)
	if err != nil || dist == 0 {
		return Operator{}, false, apperrors.Syntaxf("invalid proximity distance in %q", text)
	}
	kind := OpNear
	if name == "ADJ" {
		kind = OpAdj
	}
	return Operator{Kind: kind, Distance: uint32(dist)}, true, nil
}

func isFusable(text string) bool {
	if text == "(" || text == ")" || text == ":" {
		return false
	}
	_, isOp, err := parseOperator(text)
	return !isOp && err == nil
}

// parseTerm splits an optional "field:" prefix and normalises the rest with
// the index tokenizer so query terms match indexed terms.
func parseTerm(text string) QueryTerm {
	var q QueryTerm
	if field, term, found := strings.Cut(text, ":"); found && field != "" {
		q.Field = strings.ToLower(field)
		text = term
	}
	q.Term = tokenizer.Normalize(text)
	return q
}

package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/tokenizer"
	"github.com/gcbaptista/go-searcher/schema"
)

// Operator joins adjacent clauses that have no explicit AND/OR between them.
type Operator int

const (
	OR Operator = iota
	AND
)

// DefaultFuzziness is the edit distance used by "term~" without a number.
const DefaultFuzziness = 2

// ParserOption configures a Parser.
type ParserOption func(*Parser) error

// WithDefaultOperator sets how adjacent clauses are combined (OR by default).
func WithDefaultOperator(op Operator) ParserOption {
	return func(p *Parser) error {
		p.defaultOp = op
		return nil
	}
}

// WithFields restricts unqualified terms to the given searchable fields.
func WithFields(fields ...string) ParserOption {
	return func(p *Parser) error {
		for _, f := range fields {
			if !p.schema.IsSearchable(f) {
				return errors.NewInvalidArgumentError("fields", fmt.Sprintf("field '%s' is not searchable", f))
			}
		}
		p.fields = append([]string(nil), fields...)
		return nil
	}
}

// WithParseCache keeps up to size parsed queries keyed by their text.
func WithParseCache(size int) ParserOption {
	return func(p *Parser) error {
		if size <= 0 {
			return nil
		}
		cache, err := lru.New[string, Query](size)
		if err != nil {
			return fmt.Errorf("failed to create parse cache: %w", err)
		}
		p.cache = cache
		return nil
	}
}

// ParseOperator converts "and"/"or" to an Operator.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(s) {
	case "", "or":
		return OR, nil
	case "and":
		return AND, nil
	}
	return OR, errors.NewInvalidArgumentError("default_operator", fmt.Sprintf("unknown operator %q", s))
}

// Parser builds query trees from text. A Parser is bound to one schema and
// is safe for concurrent use.
//
// Syntax:
//
//	word               term (several tokens become a phrase)
//	"some phrase"      phrase
//	field:word         term restricted to field
//	field:(a OR b)     group restricted to field
//	word* / word~N     prefix / fuzzy (N is 1 or 2, default 2)
//	+a -b NOT c        required / excluded
//	a AND b, a OR b    boolean operators, AND binds tighter
//	year:>=2000        range, also >, <, <=
//	year:[1990 TO *}   range with inclusive [ ] and exclusive { } bounds
type Parser struct {
	schema    *schema.Schema
	defaultOp Operator
	fields    []string
	cache     *lru.Cache[string, Query]
}

// NewParser creates a parser bound to s.
func NewParser(s *schema.Schema, opts ...ParserOption) (*Parser, error) {
	if s == nil {
		return nil, errors.NewInvalidArgumentError("schema", "schema is nil")
	}
	p := &Parser{schema: s}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Schema returns the schema the parser is bound to.
func (p *Parser) Schema() *schema.Schema { return p.schema }

// Parse turns text into a query tree. Text without any searchable content
// yields a NoMatchQuery. Malformed text yields a *errors.ParseError.
func (p *Parser) Parse(text string) (Query, error) {
	if p.cache != nil {
		if q, ok := p.cache.Get(text); ok {
			return q, nil
		}
	}

	st := &parseState{parser: p, input: text}
	el, err := st.parseOr("", 0)
	if err != nil {
		return nil, err
	}
	st.skipSpace()
	if !st.eof() {
		return nil, st.errorf("unexpected '%c'", st.input[st.pos])
	}

	q := el.finish()
	if q == nil {
		q = NewNoMatchQuery()
	}
	if p.cache != nil {
		p.cache.Add(text, q)
	}
	return q, nil
}

type modifier int

const (
	modNone modifier = iota
	modRequired
	modExcluded
)

// element is a parsed clause with the +/- that preceded it. A nil q means
// the clause analyzed to nothing and is dropped.
type element struct {
	q   Query
	mod modifier
}

func (e element) finish() Query {
	if e.q == nil {
		return nil
	}
	if e.mod == modExcluded {
		return NewNOTQuery(e.q)
	}
	return e.q
}

type parseState struct {
	parser *Parser
	input  string
	pos    int
}

func (st *parseState) errorf(format string, args ...any) error {
	return errors.NewParseError(st.input, st.pos, fmt.Sprintf(format, args...))
}

func (st *parseState) eof() bool { return st.pos >= len(st.input) }

func (st *parseState) peek() byte {
	if st.eof() {
		return 0
	}
	return st.input[st.pos]
}

func (st *parseState) skipSpace() {
	for !st.eof() && unicode.IsSpace(rune(st.input[st.pos])) {
		st.pos++
	}
}

// atKeyword reports whether an upper-case operator keyword starts at pos.
func (st *parseState) atKeyword(kw string) bool {
	if !strings.HasPrefix(st.input[st.pos:], kw) {
		return false
	}
	end := st.pos + len(kw)
	if end == len(st.input) {
		return true
	}
	c := st.input[end]
	return c == ' ' || c == '\t' || c == '\n' || c == '(' || c == '"'
}

func (st *parseState) atGroupEnd(depth int) bool {
	return st.eof() || (depth > 0 && st.peek() == ')')
}

// parseOr parses clauses joined by OR (explicit, or implicit with the OR default operator).
func (st *parseState) parseOr(field string, depth int) (element, error) {
	var items []element
	for {
		st.skipSpace()
		if st.atGroupEnd(depth) {
			break
		}
		if st.peek() == ')' {
			return element{}, st.errorf("unexpected ')'")
		}
		if len(items) > 0 && st.atKeyword("OR") {
			st.pos += 2
			st.skipSpace()
			if st.atGroupEnd(depth) || st.atKeyword("OR") || st.atKeyword("AND") {
				return element{}, st.errorf("OR must be followed by a clause")
			}
		} else if len(items) == 0 && (st.atKeyword("OR") || st.atKeyword("AND")) {
			return element{}, st.errorf("query cannot start with an operator")
		}
		el, err := st.parseAnd(field, depth)
		if err != nil {
			return element{}, err
		}
		items = append(items, el)
	}
	return combineOr(items), nil
}

// parseAnd parses clauses joined by AND (explicit, or implicit with the AND default operator).
func (st *parseState) parseAnd(field string, depth int) (element, error) {
	var items []element
	for {
		el, err := st.parseUnary(field, depth)
		if err != nil {
			return element{}, err
		}
		items = append(items, el)

		st.skipSpace()
		if st.atGroupEnd(depth) || st.atKeyword("OR") {
			break
		}
		if st.atKeyword("AND") {
			st.pos += 3
			st.skipSpace()
			if st.atGroupEnd(depth) || st.atKeyword("OR") || st.atKeyword("AND") {
				return element{}, st.errorf("AND must be followed by a clause")
			}
			continue
		}
		if st.parser.defaultOp != AND {
			break
		}
	}
	return combineAnd(items), nil
}

func (st *parseState) parseUnary(field string, depth int) (element, error) {
	st.skipSpace()
	mod := modNone
	switch {
	case st.peek() == '+':
		mod = modRequired
		st.pos++
	case st.peek() == '-':
		mod = modExcluded
		st.pos++
	case st.atKeyword("NOT"):
		mod = modExcluded
		st.pos += 3
		st.skipSpace()
	}
	if mod != modNone && (st.eof() || unicode.IsSpace(rune(st.peek())) || st.peek() == ')') {
		return element{}, st.errorf("operator must be followed by a clause")
	}

	q, err := st.parsePrimary(field, depth)
	if err != nil {
		return element{}, err
	}
	return element{q: q, mod: mod}, nil
}

func (st *parseState) parsePrimary(field string, depth int) (Query, error) {
	switch st.peek() {
	case '(':
		open := st.pos
		st.pos++
		el, err := st.parseOr(field, depth+1)
		if err != nil {
			return nil, err
		}
		if st.peek() != ')' {
			st.pos = open
			return nil, st.errorf("missing closing parenthesis")
		}
		st.pos++
		return el.finish(), nil
	case '"':
		text, err := st.scanPhrase()
		if err != nil {
			return nil, err
		}
		return st.parser.phraseQuery(field, text), nil
	case ')':
		return nil, st.errorf("unexpected ')'")
	}

	start := st.pos
	word := st.scanWord()

	// "field:..." is only a field clause when the prefix names a schema field
	if field == "" {
		if i := strings.IndexByte(word, ':'); i > 0 {
			name := word[:i]
			if st.parser.schema.Has(name) {
				st.pos = start + i + 1
				return st.parseFieldClause(name, depth)
			}
			if rest := word[i+1:]; rest != "" && strings.ContainsRune("<>[{", rune(rest[0])) {
				st.pos = start
				return nil, st.errorf("range on unknown field '%s'", name)
			}
		}
	}
	return st.parser.wordQuery(field, word, st, start)
}

func (st *parseState) parseFieldClause(field string, depth int) (Query, error) {
	switch c := st.peek(); {
	case c == '(' || c == '"':
		return st.parsePrimary(field, depth)
	case c == '>' || c == '<':
		return st.parseComparison(field)
	case c == '[' || c == '{':
		return st.parseBracketRange(field)
	case st.eof() || unicode.IsSpace(rune(c)) || c == ')':
		return nil, st.errorf("field '%s' must be followed by a value", field)
	}
	start := st.pos
	word := st.scanWord()
	return st.parser.wordQuery(field, word, st, start)
}

func (st *parseState) parseComparison(field string) (Query, error) {
	op := string(st.input[st.pos])
	st.pos++
	if st.peek() == '=' {
		op += "="
		st.pos++
	}
	start := st.pos
	raw := st.scanWord()
	if raw == "" {
		return nil, st.errorf("range on '%s' is missing a value", field)
	}
	v, err := st.parser.rangeValue(field, raw)
	if err != nil {
		st.pos = start
		return nil, st.errorf("%v", err)
	}
	switch op {
	case ">":
		return NewRangeQuery(field, v, nil, false, false), nil
	case ">=":
		return NewRangeQuery(field, v, nil, true, false), nil
	case "<":
		return NewRangeQuery(field, nil, v, false, false), nil
	default:
		return NewRangeQuery(field, nil, v, false, true), nil
	}
}

func (st *parseState) parseBracketRange(field string) (Query, error) {
	open := st.pos
	includeLower := st.input[st.pos] == '['
	st.pos++

	end := strings.IndexAny(st.input[st.pos:], "]}")
	if end < 0 {
		st.pos = open
		return nil, st.errorf("unterminated range")
	}
	body := st.input[st.pos : st.pos+end]
	includeUpper := st.input[st.pos+end] == ']'

	parts := strings.Fields(body)
	if len(parts) != 3 || parts[1] != "TO" {
		return nil, st.errorf("range must look like [lower TO upper]")
	}
	var bounds [2]any
	for i, raw := range []string{parts[0], parts[2]} {
		if raw == "*" {
			continue
		}
		v, err := st.parser.rangeValue(field, raw)
		if err != nil {
			return nil, st.errorf("%v", err)
		}
		bounds[i] = v
	}
	st.pos += end + 1
	return NewRangeQuery(field, bounds[0], bounds[1], includeLower && bounds[0] != nil, includeUpper && bounds[1] != nil), nil
}

func (st *parseState) scanPhrase() (string, error) {
	open := st.pos
	st.pos++
	end := strings.IndexByte(st.input[st.pos:], '"')
	if end < 0 {
		st.pos = open
		return "", st.errorf("unterminated phrase")
	}
	text := st.input[st.pos : st.pos+end]
	st.pos += end + 1
	return text, nil
}

// scanWord consumes up to the next space, parenthesis or quote.
func (st *parseState) scanWord() string {
	start := st.pos
	for !st.eof() {
		c := st.input[st.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '(' || c == ')' || c == '"' {
			break
		}
		st.pos++
	}
	return st.input[start:st.pos]
}

// wordQuery analyzes a bare word, honoring "*" and "~N" suffixes.
func (p *Parser) wordQuery(field, word string, st *parseState, start int) (Query, error) {
	fuzzy := -1
	prefix := false

	if i := strings.LastIndexByte(word, '~'); i > 0 {
		digits := word[i+1:]
		switch {
		case digits == "":
			fuzzy = DefaultFuzziness
		default:
			n, err := strconv.Atoi(digits)
			if err != nil || n < 0 || n > 2 {
				st.pos = start + i
				return nil, st.errorf("fuzziness must be 0, 1 or 2")
			}
			fuzzy = n
		}
		word = word[:i]
	} else if strings.HasSuffix(word, "*") && len(word) > 1 {
		prefix = true
		word = strings.TrimRight(word, "*")
	}

	terms := p.analyze(field, word)
	switch {
	case len(terms) == 0:
		return nil, nil
	case len(terms) > 1:
		return p.expand(field, func(f string) Query { return NewPhraseQuery(f, terms) }), nil
	case fuzzy > 0:
		return p.expand(field, func(f string) Query { return NewFuzzyQuery(f, terms[0], fuzzy) }), nil
	case prefix:
		return p.expand(field, func(f string) Query { return NewPrefixQuery(f, terms[0]) }), nil
	default:
		return p.expand(field, func(f string) Query { return NewTermQuery(f, terms[0]) }), nil
	}
}

func (p *Parser) phraseQuery(field, text string) Query {
	terms := p.analyze(field, text)
	switch len(terms) {
	case 0:
		return nil
	case 1:
		return p.expand(field, func(f string) Query { return NewTermQuery(f, terms[0]) })
	}
	return p.expand(field, func(f string) Query { return NewPhraseQuery(f, terms) })
}

// expand builds one leaf per restricted default field, or a single
// field-less leaf when no restriction applies.
func (p *Parser) expand(field string, leaf func(string) Query) Query {
	if field != "" || len(p.fields) == 0 {
		return leaf(field)
	}
	if len(p.fields) == 1 {
		return leaf(p.fields[0])
	}
	children := make([]Query, len(p.fields))
	for i, f := range p.fields {
		children[i] = leaf(f)
	}
	return NewORQuery(children...)
}

func (p *Parser) analyze(field, text string) []string {
	if field != "" {
		if f, ok := p.schema.Field(field); ok && f.Type == config.FieldTypeKeyword {
			if kw := tokenizer.NormalizeKeyword(text); kw != "" {
				return []string{kw}
			}
			return nil
		}
	}
	return tokenizer.Tokenize(text)
}

func (p *Parser) rangeValue(field, raw string) (any, error) {
	f, ok := p.schema.Field(field)
	if !ok {
		return nil, fmt.Errorf("unknown field '%s'", field)
	}
	switch f.Type {
	case config.FieldTypeNumeric:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("'%s' is not a number", raw)
		}
		return v, nil
	case config.FieldTypeDatetime:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("'%s' is not an RFC3339 or YYYY-MM-DD date", raw)
	default:
		return tokenizer.NormalizeKeyword(raw), nil
	}
}

func combineAnd(items []element) element {
	kept := items[:0:0]
	for _, it := range items {
		if it.q != nil {
			kept = append(kept, it)
		}
	}
	switch len(kept) {
	case 0:
		return element{}
	case 1:
		return kept[0]
	}
	children := make([]Query, len(kept))
	for i, it := range kept {
		children[i] = it.finish()
	}
	return element{q: NewANDQuery(children...)}
}

// combineOr joins OR siblings: "+" clauses are required, "-" clauses are
// excluded and the rest are optional.
func combineOr(items []element) element {
	var required, optional, excluded []Query
	for _, it := range items {
		if it.q == nil {
			continue
		}
		switch it.mod {
		case modRequired:
			required = append(required, it.q)
		case modExcluded:
			excluded = append(excluded, it.q)
		default:
			optional = append(optional, it.q)
		}
	}

	total := len(required) + len(optional) + len(excluded)
	switch {
	case total == 0:
		return element{}
	case total == 1:
		for _, it := range items {
			if it.q != nil {
				return it
			}
		}
	}

	var base Query
	switch {
	case len(required) > 0 && len(optional) > 0:
		base = NewRequiredOptionalQuery(joinAnd(required), joinOr(optional))
	case len(required) > 0:
		base = joinAnd(required)
	case len(optional) > 0:
		base = joinOr(optional)
	}
	if len(excluded) == 0 {
		return element{q: base}
	}
	not := NewNOTQuery(joinOr(excluded))
	if base == nil {
		return element{q: not}
	}
	return element{q: NewANDQuery(base, not)}
}

func joinAnd(qs []Query) Query {
	if len(qs) == 1 {
		return qs[0]
	}
	return NewANDQuery(qs...)
}

func joinOr(qs []Query) Query {
	if len(qs) == 1 {
		return qs[0]
	}
	return NewORQuery(qs...)
}

package ftssearch

import (
	"strconv"
	"strings"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/schema"
)

// sqlExpr is an SQL fragment with its positional arguments in order.
type sqlExpr struct {
	sql  string
	args []any
}

func lit(sql string, args ...any) sqlExpr { return sqlExpr{sql: sql, args: args} }

var (
	sqlTrue  = lit("1")
	sqlFalse = lit("0")
	sqlZero  = lit("0")
)

// compiled is a query node as a WHERE predicate over docs plus a score
// expression that is zero for documents the predicate rejects.
type compiled struct {
	pred  sqlExpr
	score sqlExpr
}

// join concatenates fragments around sep, keeping argument order.
func join(sep string, parts ...sqlExpr) sqlExpr {
	var b strings.Builder
	var args []any
	for i, p := range parts {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString("(")
		b.WriteString(p.sql)
		b.WriteString(")")
		args = append(args, p.args...)
	}
	return sqlExpr{sql: b.String(), args: args}
}

// when is "CASE WHEN pred THEN score ELSE 0 END".
func when(c compiled) sqlExpr {
	args := append(append([]any{}, c.pred.args...), c.score.args...)
	return sqlExpr{sql: "CASE WHEN " + c.pred.sql + " THEN " + c.score.sql + " ELSE 0 END", args: args}
}

// compiler turns query trees into SQL for one schema and column layout.
type compiler struct {
	schema  *schema.Schema
	columns map[string]string // searchable text field -> fts column
}

func (c *compiler) compile(q query.Query) (compiled, error) {
	switch q := q.(type) {
	case nil:
		return compiled{}, errors.NewInvalidArgumentError("query", "query is nil")
	case *query.NoMatchQuery:
		return compiled{pred: sqlFalse, score: sqlZero}, nil
	case *query.MatchAllQuery:
		return compiled{pred: sqlTrue, score: sqlZero}, nil
	case *query.TermQuery:
		return c.leaf(q.Field, ftsString(q.Term), func(f schema.Field) sqlExpr { return valueEquals(f, q.Term) }), nil
	case *query.FuzzyQuery:
		// FTS5 has no edit-distance matching
		return c.leaf(q.Field, ftsString(q.Term), func(f schema.Field) sqlExpr { return valueEquals(f, q.Term) }), nil
	case *query.PhraseQuery:
		if len(q.Terms) == 0 {
			return compiled{pred: sqlFalse, score: sqlZero}, nil
		}
		return c.leaf(q.Field, ftsString(strings.Join(q.Terms, " ")), func(schema.Field) sqlExpr { return sqlFalse }), nil
	case *query.PrefixQuery:
		if q.Prefix == "" {
			return compiled{pred: sqlFalse, score: sqlZero}, nil
		}
		return c.leaf(q.Field, ftsString(q.Prefix)+" *", func(f schema.Field) sqlExpr { return valuePrefix(f, q.Prefix) }), nil
	case *query.RangeQuery:
		f, ok := c.schema.Field(q.Field)
		if !ok {
			return compiled{pred: sqlFalse, score: sqlZero}, nil
		}
		return compiled{pred: valueRange(f, q), score: sqlZero}, nil
	case *query.ANDQuery:
		if len(q.Children) == 0 {
			return compiled{pred: sqlFalse, score: sqlZero}, nil
		}
		children, err := c.compileAll(q.Children)
		if err != nil {
			return compiled{}, err
		}
		preds := make([]sqlExpr, len(children))
		scores := make([]sqlExpr, len(children))
		for i, ch := range children {
			preds[i] = ch.pred
			scores[i] = ch.score
		}
		return compiled{pred: join(" AND ", preds...), score: join(" + ", scores...)}, nil
	case *query.ORQuery:
		if len(q.Children) == 0 {
			return compiled{pred: sqlFalse, score: sqlZero}, nil
		}
		children, err := c.compileAll(q.Children)
		if err != nil {
			return compiled{}, err
		}
		preds := make([]sqlExpr, len(children))
		scores := make([]sqlExpr, len(children))
		for i, ch := range children {
			preds[i] = ch.pred
			scores[i] = when(ch)
		}
		return compiled{pred: join(" OR ", preds...), score: join(" + ", scores...)}, nil
	case *query.NOTQuery:
		negated, err := c.compile(q.Negated)
		if err != nil {
			return compiled{}, err
		}
		not := negated.pred
		return compiled{pred: sqlExpr{sql: "NOT (" + not.sql + ")", args: not.args}, score: sqlZero}, nil
	case *query.RequiredOptionalQuery:
		required, err := c.compile(q.Required)
		if err != nil {
			return compiled{}, err
		}
		optional, err := c.compile(q.Optional)
		if err != nil {
			return compiled{}, err
		}
		return compiled{pred: required.pred, score: join(" + ", required.score, when(optional))}, nil
	}
	return compiled{}, errors.NewUnsupportedQueryError(string(config.BackendSQLite), q.String())
}

func (c *compiler) compileAll(qs []query.Query) ([]compiled, error) {
	out := make([]compiled, len(qs))
	for i, q := range qs {
		cq, err := c.compile(q)
		if err != nil {
			return nil, err
		}
		out[i] = cq
	}
	return out, nil
}

// leaf compiles a leaf over one field, or over every searchable field when
// field is empty. Text fields answer from FTS with the match expression;
// other fields are matched on their stored values by valuePred.
func (c *compiler) leaf(field, match string, valuePred func(schema.Field) sqlExpr) compiled {
	var fields []schema.Field
	if field != "" {
		f, ok := c.schema.Field(field)
		if !ok {
			return compiled{pred: sqlFalse, score: sqlZero}
		}
		fields = []schema.Field{f}
	} else {
		for _, name := range c.schema.SearchableFields() {
			f, _ := c.schema.Field(name)
			fields = append(fields, f)
		}
	}

	var cols []string
	var preds []sqlExpr
	for _, f := range fields {
		if col, ok := c.columns[f.Name]; ok {
			cols = append(cols, col)
			continue
		}
		preds = append(preds, valuePred(f))
	}

	score := sqlZero
	if len(cols) > 0 {
		expr := columnFilter(cols) + " : " + match
		preds = append([]sqlExpr{lit("docs.num IN (SELECT rowid FROM fts WHERE fts MATCH ?)", expr)}, preds...)
		score = lit("COALESCE((SELECT -bm25(fts) FROM fts WHERE fts MATCH ? AND fts.rowid = docs.num), 0)", expr)
	}
	if len(preds) == 0 {
		return compiled{pred: sqlFalse, score: sqlZero}
	}
	return compiled{pred: join(" OR ", preds...), score: score}
}

func columnFilter(cols []string) string {
	if len(cols) == 1 {
		return cols[0]
	}
	return "{" + strings.Join(cols, " ") + "}"
}

// ftsString quotes s as an FTS5 string, which matches it as a phrase.
func ftsString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// jsonPath addresses a top-level document field.
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

// anyValue is true when some element of the field (or the field itself,
// when scalar) satisfies cond, written against json_each's value column.
func anyValue(field string, cond sqlExpr) sqlExpr {
	args := append([]any{jsonPath(field)}, cond.args...)
	return sqlExpr{
		sql:  "EXISTS (SELECT 1 FROM json_each(docs.body, ?) WHERE " + cond.sql + ")",
		args: args,
	}
}

func valueEquals(f schema.Field, term string) sqlExpr {
	switch f.Type {
	case config.FieldTypeNumeric:
		n, err := strconv.ParseFloat(term, 64)
		if err != nil {
			return sqlFalse
		}
		return anyValue(f.Name, lit("type IN ('integer', 'real') AND value = ?", n))
	case config.FieldTypeDatetime:
		return sqlFalse
	}
	return anyValue(f.Name, lit("lower(trim(CAST(value AS TEXT))) = ?", term))
}

func valuePrefix(f schema.Field, prefix string) sqlExpr {
	if f.Type == config.FieldTypeNumeric || f.Type == config.FieldTypeDatetime {
		return sqlFalse
	}
	return anyValue(f.Name, lit(`lower(trim(CAST(value AS TEXT))) LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%"))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// sqliteTime is the layout SQLite's date functions read.
const sqliteTime = "2006-01-02T15:04:05"

func valueRange(f schema.Field, q *query.RangeQuery) sqlExpr {
	var value string
	var toArg func(any) (any, bool)
	switch f.Type {
	case config.FieldTypeNumeric:
		value = "value"
		toArg = func(v any) (any, bool) { return model.ToFloat64(v) }
	case config.FieldTypeDatetime:
		value = "julianday(value)"
		toArg = func(v any) (any, bool) {
			t, ok := model.ToTime(v)
			if !ok {
				return nil, false
			}
			return t.UTC().Format(sqliteTime), true
		}
	default:
		value = "lower(CAST(value AS TEXT))"
		toArg = func(v any) (any, bool) {
			s, ok := v.(string)
			return s, ok
		}
	}

	conds := []string{}
	var args []any
	if f.Type == config.FieldTypeNumeric {
		conds = append(conds, "type IN ('integer', 'real')")
	}
	bound := func(b any, op string) bool {
		arg, ok := toArg(b)
		if !ok {
			return false
		}
		placeholder := "?"
		if f.Type == config.FieldTypeDatetime {
			placeholder = "julianday(?)"
		}
		conds = append(conds, value+" "+op+" "+placeholder)
		args = append(args, arg)
		return true
	}
	if q.Lower != nil {
		op := ">"
		if q.IncludeLower {
			op = ">="
		}
		if !bound(q.Lower, op) {
			return sqlFalse
		}
	}
	if q.Upper != nil {
		op := "<"
		if q.IncludeUpper {
			op = "<="
		}
		if !bound(q.Upper, op) {
			return sqlFalse
		}
	}
	if f.Type == config.FieldTypeDatetime {
		conds = append(conds, value+" IS NOT NULL")
	}
	if len(conds) == 0 {
		conds = append(conds, "value IS NOT NULL")
	}
	return anyValue(f.Name, sqlExpr{sql: strings.Join(conds, " AND "), args: args})
}

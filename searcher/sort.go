package searcher

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/model"
)

// SortType selects what a SortRule orders by.
type SortType int

const (
	// SortByScore orders by relevance, best first.
	SortByScore SortType = iota
	// SortByDocID orders by document number, lowest first.
	SortByDocID
	// SortByField orders by a document field value, lowest first.
	SortByField
)

// SortRule is one ordering key. Reverse flips its natural direction.
type SortRule struct {
	Type    SortType
	Field   string
	Reverse bool
}

// SortSpec is an ordered list of rules. Ties left by every rule are broken
// by document number. A nil *SortSpec means relevance order.
type SortSpec struct {
	Rules []SortRule
}

// NewSortSpec creates a SortSpec from rules.
func NewSortSpec(rules ...SortRule) *SortSpec {
	return &SortSpec{Rules: rules}
}

// SortSpecFromRanking converts ranking criteria ("~score", "~id" or a field
// name with "asc"/"desc") to a SortSpec. No criteria yields nil.
func SortSpecFromRanking(criteria []config.RankingCriterion) *SortSpec {
	if len(criteria) == 0 {
		return nil
	}
	spec := &SortSpec{Rules: make([]SortRule, 0, len(criteria))}
	for _, c := range criteria {
		desc := strings.EqualFold(c.Order, "desc")
		switch c.Field {
		case config.ScoreField:
			spec.Rules = append(spec.Rules, SortRule{Type: SortByScore, Reverse: !desc})
		case config.DocIDField:
			spec.Rules = append(spec.Rules, SortRule{Type: SortByDocID, Reverse: desc})
		default:
			spec.Rules = append(spec.Rules, SortRule{Type: SortByField, Field: c.Field, Reverse: desc})
		}
	}
	return spec
}

// Validate checks that every field rule names a field.
func (s *SortSpec) Validate() error {
	if s == nil {
		return nil
	}
	for i, r := range s.Rules {
		switch r.Type {
		case SortByScore, SortByDocID:
		case SortByField:
			if strings.TrimSpace(r.Field) == "" {
				return errors.NewInvalidArgumentError("sort_spec", fmt.Sprintf("rule %d has no field", i))
			}
		default:
			return errors.NewInvalidArgumentError("sort_spec", fmt.Sprintf("rule %d has unknown type %d", i, r.Type))
		}
	}
	return nil
}

// NeedsValues reports whether ordering reads document field values.
func (s *SortSpec) NeedsValues() bool {
	if s == nil {
		return false
	}
	for _, r := range s.Rules {
		if r.Type == SortByField {
			return true
		}
	}
	return false
}

// FieldValues extracts the values Compare needs from doc, aligned with Rules.
func (s *SortSpec) FieldValues(doc model.Document) []any {
	if !s.NeedsValues() {
		return nil
	}
	values := make([]any, len(s.Rules))
	for i, r := range s.Rules {
		if r.Type == SortByField {
			values[i] = doc[r.Field]
		}
	}
	return values
}

// Compare orders two matches: negative when a ranks before b.
// Documents missing a field value sort after those that have one,
// whichever the direction.
func (s *SortSpec) Compare(a, b *MatchDoc) int {
	if s == nil || len(s.Rules) == 0 {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.DocID, b.DocID)
	}

	for i, r := range s.Rules {
		var c int
		switch r.Type {
		case SortByScore:
			c = cmp.Compare(b.Score, a.Score)
		case SortByDocID:
			c = cmp.Compare(a.DocID, b.DocID)
		case SortByField:
			av, bv := valueAt(a, i), valueAt(b, i)
			switch {
			case av == nil && bv == nil:
				continue
			case av == nil:
				return 1
			case bv == nil:
				return -1
			}
			c, _ = model.CompareValues(av, bv)
		}
		if r.Reverse {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return cmp.Compare(a.DocID, b.DocID)
}

func valueAt(m *MatchDoc, i int) any {
	if i < len(m.Values) {
		return m.Values[i]
	}
	return nil
}

func (s *SortSpec) String() string {
	if s == nil {
		return "relevance"
	}
	parts := make([]string, len(s.Rules))
	for i, r := range s.Rules {
		var name string
		switch r.Type {
		case SortByScore:
			name = config.ScoreField
		case SortByDocID:
			name = config.DocIDField
		default:
			name = r.Field
		}
		if r.Reverse {
			name += " reversed"
		}
		parts[i] = name
	}
	return strings.Join(parts, ", ")
}

package blevesearch

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/tokenizer"
	"github.com/gcbaptista/go-searcher/schema"
)

const (
	// TokenizerName is the bleve name of the searcher's own tokenizer.
	TokenizerName = "searcher_tokenizer"

	textAnalyzerName    = "searcher_text"
	keywordAnalyzerName = "searcher_keyword"

	// sourceField stores the JSON of the original document.
	sourceField = "_source"
)

func init() {
	_ = registry.RegisterTokenizer(TokenizerName, tokenizerConstructor)
}

func tokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveTokenizer{}, nil
}

// bleveTokenizer runs the same analysis as the inverted index so both
// backends agree on what a term is.
type bleveTokenizer struct{}

func (t *bleveTokenizer) Tokenize(input []byte) analysis.TokenStream {
	tokens := tokenizer.TokenizeWithOffsets(string(input))
	stream := make(analysis.TokenStream, 0, len(tokens))
	for _, tok := range tokens {
		stream = append(stream, &analysis.Token{
			Term:     []byte(tok.Term),
			Start:    tok.Start,
			End:      tok.End,
			Position: tok.Position + 1, // bleve positions start at 1
			Type:     analysis.AlphaNumeric,
		})
	}
	return stream
}

// buildMapping maps every schema field to a bleve field of the matching
// kind, plus the stored-only source field.
func buildMapping(sch *schema.Schema) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	err := im.AddCustomAnalyzer(textAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     TokenizerName,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}
	err = im.AddCustomAnalyzer(keywordAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}

	dm := bleve.NewDocumentStaticMapping()
	for _, f := range sch.Fields() {
		var fm *mapping.FieldMapping
		switch f.Type {
		case config.FieldTypeNumeric:
			fm = bleve.NewNumericFieldMapping()
		case config.FieldTypeDatetime:
			fm = bleve.NewDateTimeFieldMapping()
		case config.FieldTypeKeyword:
			fm = bleve.NewKeywordFieldMapping()
			fm.Analyzer = keywordAnalyzerName
		default:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = textAnalyzerName
			fm.IncludeTermVectors = true
		}
		fm.IncludeInAll = false
		dm.AddFieldMappingsAt(f.Name, fm)
	}

	src := bleve.NewTextFieldMapping()
	src.Index = false
	src.Store = true
	src.IncludeInAll = false
	src.DocValues = false
	dm.AddFieldMappingsAt(sourceField, src)

	im.DefaultMapping = dm
	im.DefaultAnalyzer = textAnalyzerName
	return im, nil
}

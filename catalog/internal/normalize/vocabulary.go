package normalize

import (
	_ "embed"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Spreadsheet fields understood by the row normalizer.
const (
	ColTitle            = "title"
	ColAuthor           = "author"
	ColIsSeries         = "is_series"
	ColPages            = "pages"
	ColLanguage         = "language"
	ColGenre            = "genre"
	ColSubgenre         = "subgenre"
	ColRead             = "read"
	ColIsOwned          = "is_owned"
	ColIsNonfiction     = "is_nonfiction"
	ColPurchaseYear     = "purchase_year"
	ColPurchaseLocation = "purchase_location"
	ColPublisher        = "publisher"
)

//go:embed headers.yaml
var defaultHeaders []byte

// Vocabulary maps a spreadsheet field to the column headers that may carry it.
type Vocabulary map[string][]string

func DefaultVocabulary() Vocabulary {
	v, err := ParseVocabulary(defaultHeaders)
	if err != nil {
		panic(err)
	}
	return v
}

func ParseVocabulary(data []byte) (Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, "yaml.Unmarshal")
	}
	return v, nil
}

// LoadVocabulary reads a YAML vocabulary from path and lays it over the default one.
// An empty path returns the default.
func LoadVocabulary(path string) (Vocabulary, error) {
	base := DefaultVocabulary()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read vocabulary %s", path)
	}
	override, err := ParseVocabulary(data)
	if err != nil {
		return nil, err
	}
	for field, headers := range override {
		if len(headers) > 0 {
			base[field] = headers
		}
	}
	return base, nil
}

func headerKey(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

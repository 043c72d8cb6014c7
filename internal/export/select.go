package export

import (
	"encoding/json"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Generic converts an export (or any JSON-marshalable value) into plain
// maps and slices suitable for JSONPath evaluation.
func Generic(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return doc, nil
}

// Select evaluates a JSONPath expression against a generic document.
func Select(doc any, selector string) ([]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, Error.New("invalid jsonpath '%s': %v", selector, err)
	}
	return x.Get(doc), nil
}

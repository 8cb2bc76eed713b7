package flowise

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// AnswerKeys lists, in priority order, the fields different Flowise
// versions use to carry the answer of a buffered prediction.
var AnswerKeys = []string{"text", "answer", "output", "response", "message", "content"}

// ExtractAnswer pulls the answer text out of a buffered JSON prediction.
//
// A bare JSON string is the answer itself. Otherwise the first present,
// non-null key of AnswerKeys wins; string values are returned verbatim,
// false and zero count as empty, and anything else is returned as its raw
// JSON. Failing that, outputs[0].text is used when
// outputs is an array. An empty result is ErrEmptyResponse.
func ExtractAnswer(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: body is not valid JSON", ErrEmptyResponse)
	}

	doc := gjson.ParseBytes(body)
	text := ""

	switch {
	case doc.Type == gjson.String:
		text = doc.Str
	case doc.IsObject():
		found := false
		for _, key := range AnswerKeys {
			v := doc.Get(key)
			if !v.Exists() || v.Type == gjson.Null {
				continue
			}
			switch {
			case v.Type == gjson.String:
				text = v.Str
			case v.Type == gjson.False, v.Type == gjson.Number && v.Num == 0:
				// falsy values count as no answer
			default:
				text = v.Raw
			}
			found = true
			break
		}
		if !found {
			if outputs := doc.Get("outputs"); outputs.IsArray() {
				if first := outputs.Get("0.text"); first.Type == gjson.String {
					text = first.Str
				}
			}
		}
	}

	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

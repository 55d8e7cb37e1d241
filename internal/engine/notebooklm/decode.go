package notebooklm

import (
	"encoding/json"
	"strings"

	"github.com/anatolykoptev/go_nlm/internal/engine"
)

const payloadMarker = "wrb.fr"

// Decode unwraps a batchexecute response: it finds the first payload line,
// decodes it, then decodes the JSON string stored at [0][2].
// A null payload slot yields (nil, nil); callers treat that as an empty result.
func Decode(raw string) (any, error) {
	for _, line := range strings.Split(raw, "\n") {
		if !strings.Contains(line, payloadMarker) {
			continue
		}
		var outer []any
		if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &outer); err != nil {
			return nil, engine.WrapError(engine.CodeMalformedResponse, "decode payload line", err)
		}
		slot := at(outer, 0, 2)
		if slot == nil {
			return nil, nil
		}
		inner, ok := slot.(string)
		if !ok {
			return nil, engine.NewError(engine.CodeMalformedResponse, "payload slot is %T, not a string", slot)
		}
		var payload any
		if err := json.Unmarshal([]byte(inner), &payload); err != nil {
			return nil, engine.WrapError(engine.CodeMalformedResponse, "decode inner payload", err)
		}
		return payload, nil
	}
	return nil, engine.NewError(engine.CodeMalformedResponse, "no %s line in response", payloadMarker)
}

func decodeJSON(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

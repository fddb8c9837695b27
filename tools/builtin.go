package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/groxaxo/chatmode/types"
)

// RegisterBuiltins installs the built-in tools available to agents whose
// allow-list names them.
func RegisterBuiltins(r *Registry) error {
	if err := r.Register("current_time", currentTime, Metadata{
		Schema: types.ToolSchema{
			Name:        "current_time",
			Description: "Returns the current date and time, optionally in a named IANA time zone.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"tz": {"type": "string", "description": "IANA time zone name, e.g. Europe/Berlin. Defaults to UTC."}
				}
			}`),
		},
		Timeout: 5 * time.Second,
	}); err != nil {
		return err
	}

	return r.Register("word_count", wordCount, Metadata{
		Schema: types.ToolSchema{
			Name:        "word_count",
			Description: "Counts the words in the given text.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"text": {"type": "string"}
				},
				"required": ["text"]
			}`),
		},
		Timeout: 5 * time.Second,
	})
}

func currentTime(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		TZ string `json:"tz"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("parse arguments: %w", err)
		}
	}

	loc := time.UTC
	if in.TZ != "" {
		var err error
		loc, err = time.LoadLocation(in.TZ)
		if err != nil {
			return nil, fmt.Errorf("unknown time zone %q", in.TZ)
		}
	}

	return json.Marshal(map[string]string{
		"time": time.Now().In(loc).Format(time.RFC3339),
		"zone": loc.String(),
	})
}

func wordCount(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("parse arguments: %w", err)
	}
	return json.Marshal(map[string]int{"words": len(strings.Fields(in.Text))})
}

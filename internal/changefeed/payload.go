package changefeed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/inbox-manager-api/internal/models"
)

// Decode parses a notification payload of the form
//
//	{"table": "...", "type": "INSERT|UPDATE|DELETE", "record": {...}, "old_record": {...}}
func Decode(raw []byte) (models.ChangeEvent, error) {
	var evt models.ChangeEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	if evt.Table == "" {
		return models.ChangeEvent{}, fmt.Errorf("decode change event: missing table")
	}
	evt.Kind = models.ChangeKind(strings.ToUpper(string(evt.Kind)))
	switch evt.Kind {
	case models.ChangeInsert, models.ChangeUpdate, models.ChangeDelete:
	default:
		return models.ChangeEvent{}, fmt.Errorf("decode change event: unknown type %q", evt.Kind)
	}
	return evt, nil
}

// Encode renders evt as a notification payload.
func Encode(evt models.ChangeEvent) ([]byte, error) {
	return json.Marshal(evt)
}

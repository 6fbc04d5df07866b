// Package sanitize turns untrusted oracle text into a validated payload of
// world updates. Malformed update elements are dropped one by one; only a
// response with no parseable JSON object is an error.
package sanitize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"openhistoria/internal/apperr"
	"openhistoria/internal/world"
)

// DefaultMessage replaces a missing or blank narrative.
const DefaultMessage = "The world watches your move. Issue your next command."

var fencePattern = regexp.MustCompile("(?i)```(?:json)?")

type Payload struct {
	Message string
	Updates []world.Update
}

func (p Payload) MarshalJSON() ([]byte, error) {
	updates := p.Updates
	if updates == nil {
		updates = []world.Update{}
	}
	return json.Marshal(struct {
		Message string         `json:"message"`
		Updates []world.Update `json:"updates"`
	}{p.Message, updates})
}

// Sanitize extracts and validates the oracle payload in raw. fallbackYear
// is used for events without a usable year.
func Sanitize(raw string, fallbackYear int) (Payload, error) {
	var doc any
	if err := json.Unmarshal([]byte(Extract(raw)), &doc); err != nil {
		return Payload{}, apperr.Wrap(apperr.CodeParse, "oracle response is not valid JSON", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return Payload{}, apperr.New(apperr.CodeParse, "oracle response is not a JSON object")
	}
	return fromObject(obj, fallbackYear), nil
}

// Extract strips code fences and returns the span from the first '{' to
// the last '}', or the trimmed text when there is no such span.
func Extract(raw string) string {
	text := fencePattern.ReplaceAllString(raw, "")
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func fromObject(obj map[string]any, fallbackYear int) Payload {
	payload := Payload{Message: DefaultMessage, Updates: []world.Update{}}
	if msg, ok := nonEmpty(obj["message"]); ok {
		payload.Message = msg
	}

	items, ok := obj["updates"].([]any)
	if !ok {
		return payload
	}
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if update, ok := parseUpdate(entry, fallbackYear); ok {
			payload.Updates = append(payload.Updates, update)
		}
	}
	return payload
}

func parseUpdate(entry map[string]any, fallbackYear int) (world.Update, bool) {
	kind, _ := entry["type"].(string)
	switch world.UpdateKind(strings.ToLower(strings.TrimSpace(kind))) {
	case world.UpdateOwner:
		province, ok1 := nonEmpty(entry["provinceName"])
		owner, ok2 := nonEmpty(entry["newOwnerId"])
		if !ok1 || !ok2 {
			return world.Update{}, false
		}
		return world.NewOwnerUpdate(province, owner), true

	case world.UpdateTime:
		amount, ok := toInt(entry["amount"])
		if !ok {
			return world.Update{}, false
		}
		return world.NewTimeUpdate(amount), true

	case world.UpdateEvent:
		description, ok := entry["description"].(string)
		if !ok {
			return world.Update{}, false
		}
		eventType, _ := entry["eventType"].(string)
		year, ok := toInt(entry["year"])
		if !ok {
			year = fallbackYear
		}
		return world.NewEventUpdate(description, world.ParseEventType(eventType), year), true

	case world.UpdateRelation:
		nationA, ok1 := nonEmpty(entry["nationA"])
		nationB, ok2 := nonEmpty(entry["nationB"])
		relationType, ok3 := nonEmpty(entry["relationType"])
		if !ok1 || !ok2 || !ok3 {
			return world.Update{}, false
		}
		reason, _ := entry["reason"].(string)
		return world.NewRelationUpdate(nationA, nationB, relationType, reason), true
	}
	return world.Update{}, false
}

// nonEmpty returns value trimmed when it is a string with content.
func nonEmpty(value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// maxIntFloat is 2^63, the first float64 that no longer fits in an int64.
const maxIntFloat = float64(math.MaxInt64)

// toInt coerces numbers, numeric strings and booleans, rejects null,
// non-finite values and anything too large for an int, and truncates toward
// zero.
func toInt(value any) (int, bool) {
	var f float64
	switch v := value.(type) {
	case bool:
		if v {
			f = 1
		}
	case float64:
		f = v
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			f = 0
			break
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f >= maxIntFloat || f <= -maxIntFloat {
		return 0, false
	}
	return int(f), true
}

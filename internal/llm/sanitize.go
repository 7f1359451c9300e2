package llm

import (
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

var extractionKeys = map[string]struct{}{
	"shipment_id": {}, "shipper_id": {}, "pickup_time": {}, "pickup_contact": {},
	"delivery_time": {}, "receiver": {}, "transit_time_hours": {}, "evaporation_rate_kg_per_hour": {},
}

var extractionAliases = map[string]string{
	"manifest_id":              "shipment_id",
	"dropoff_time":             "delivery_time",
	"origin_contact":           "pickup_contact",
	"origin_contact_name":      "pickup_contact",
	"destination_contact":      "receiver",
	"destination_contact_name": "receiver",
	"transit_time":             "transit_time_hours",
	"evaporation_rate":         "evaporation_rate_kg_per_hour",
}

// SanitizeExtraction normalizes a model answer before schema validation:
//   - strips markdown code fences
//   - wraps a bare array as {"shipments": [...]}
//   - renames known synonyms and removes unknown keys
//   - drops null/empty optionals and coerces numeric strings (including "H:MM")
//
// It returns the cleaned JSON and a list of what was changed.
func SanitizeExtraction(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	body := stripFences(string(raw))

	var top any
	if err := json.Unmarshal([]byte(body), &top); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var changed []string
	var items []any
	switch t := top.(type) {
	case []any:
		items = t
		changed = append(changed, "array->shipments")
	case map[string]any:
		arr, ok := t["shipments"].([]any)
		if !ok {
			return nil, nil, fmt.Errorf("sanitize: missing shipments array")
		}
		items = arr
	default:
		return nil, nil, fmt.Errorf("sanitize: unexpected top-level %T", top)
	}

	out := make([]any, 0, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			changed = append(changed, fmt.Sprintf("[%d](type)", i))
			continue
		}
		for _, c := range sanitizeItem(m) {
			changed = append(changed, fmt.Sprintf("[%d].%s", i, c))
		}
		out = append(out, m)
	}

	b, err := json.Marshal(map[string]any{"shipments": out})
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Warn("llm.extract.sanitize", "changed", changed)
	}
	return b, changed, nil
}

func sanitizeItem(m map[string]any) []string {
	var changed []string

	for from, to := range extractionAliases {
		v, ok := m[from]
		if !ok {
			continue
		}
		if _, exists := m[to]; !exists {
			m[to] = v
		}
		delete(m, from)
		changed = append(changed, from+"->"+to)
	}

	for k := range maps.Clone(m) {
		if _, ok := extractionKeys[k]; !ok {
			delete(m, k)
			changed = append(changed, k+"(unknown)")
		}
	}

	for _, k := range []string{"transit_time_hours", "evaporation_rate_kg_per_hour"} {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
		case string:
			if f, ok := parseLooseNumber(t); ok {
				m[k] = f
				changed = append(changed, k+"(coerced)")
			} else {
				delete(m, k)
				changed = append(changed, k+"(dropped)")
			}
		default:
			delete(m, k)
			changed = append(changed, k+"(dropped)")
		}
	}

	for k, v := range maps.Clone(m) {
		switch t := v.(type) {
		case nil:
			delete(m, k)
			changed = append(changed, k+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "unknown") {
				delete(m, k)
				changed = append(changed, k+"(empty)")
				continue
			}
			m[k] = s
		}
	}
	return changed
}

// parseLooseNumber accepts "3.5", "3.5 hours", "0.25 kg/hour" and "3:30".
func parseLooseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	if h, mm, ok := strings.Cut(s, ":"); ok {
		hours, err1 := strconv.Atoi(h)
		mins, err2 := strconv.Atoi(mm)
		if err1 != nil || err2 != nil || mins < 0 || mins > 59 {
			return 0, false
		}
		sign := 1.0
		if hours < 0 || strings.HasPrefix(h, "-") {
			sign = -1
			hours = -hours
		}
		return sign * (float64(hours) + float64(mins)/60), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

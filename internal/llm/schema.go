package llm

import (
	"github.com/goccy/go-json"
)

// BuildShipmentJSONSchema returns the extraction schema (draft 2020-12 subset)
// as a generic map. It is sent with the prompt and used locally to validate.
func BuildShipmentJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"shipment_id":                  map[string]any{"type": "string", "minLength": 1},
			"shipper_id":                   map[string]any{"type": "string", "minLength": 1},
			"pickup_time":                  timestampProp(),
			"pickup_contact":               map[string]any{"type": "string"},
			"delivery_time":                timestampProp(),
			"receiver":                     map[string]any{"type": "string"},
			"transit_time_hours":           map[string]any{"type": "number"},
			"evaporation_rate_kg_per_hour": map[string]any{"type": "number"},
		},
		"required": []string{"shipment_id", "shipper_id", "pickup_time"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"shipments": map[string]any{"type": "array", "items": item},
		},
		"required": []string{"shipments"},
	}
}

func timestampProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^\d{4}-\d{2}-\d{2}([ T]\d{2}:\d{2}(:\d{2})?)?`,
	}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

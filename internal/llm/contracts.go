package llm

import "context"

// Role values understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-neutral completion request.
type ChatRequest struct {
	Messages []Message
	// Temperature overrides the client default when non-nil.
	Temperature *float32
	// JSON asks the provider for a JSON object response.
	JSON bool
}

// ExtractedShipment is one element of the structured extraction answer.
type ExtractedShipment struct {
	ShipmentID               string   `json:"shipment_id"`
	ShipperID                string   `json:"shipper_id"`
	PickupTime               string   `json:"pickup_time"`
	PickupContact            string   `json:"pickup_contact,omitempty"`
	DeliveryTime             string   `json:"delivery_time,omitempty"`
	Receiver                 string   `json:"receiver,omitempty"`
	TransitTimeHours         *float64 `json:"transit_time_hours,omitempty"`
	EvaporationRateKgPerHour *float64 `json:"evaporation_rate_kg_per_hour,omitempty"`
}

// Completer produces a single assistant message for a chat request.
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Embedder turns text into dense vectors. EmbedBatch returns one vector per
// input, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

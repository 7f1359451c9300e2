package llm

import (
	"strings"
)

const askSystemPrompt = "You are a logistics assistant helping interpret cryogenic container shipment logs. " +
	"Answer only from the shipment records provided. Times are UTC. " +
	"Transit time is shown as hours:minutes and evaporation rate in kg/hour. " +
	"If the records do not answer the question, say so plainly."

// maxContextChars bounds the records block sent with a question.
const maxContextChars = 24000

// BuildAskMessages packages formatted shipment records and the user's question
// into the system and user messages of a retrieval-augmented completion.
func BuildAskMessages(records, question string) []Message {
	records = strings.TrimSpace(records)
	if len(records) > maxContextChars {
		records = records[:maxContextChars] + "\n…(truncated)"
	}

	var b strings.Builder
	b.WriteString("Use the following context to answer the question:\n\n")
	b.WriteString(records)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))

	return []Message{
		{Role: RoleSystem, Content: askSystemPrompt},
		{Role: RoleUser, Content: b.String()},
	}
}

// BuildExtractionMessages asks for one JSON object per shipment block. The
// answer is wrapped in {"shipments": [...]} so providers in JSON-object mode
// can return it.
func BuildExtractionMessages(blocks []string) []Message {
	sys := strings.Join([]string{
		"You are a precise data extraction assistant.",
		"Extract structured information from each shipment log.",
		`Return ONLY a JSON object of the form {"shipments": [...]} with one object per shipment.`,
		"Use the keys shipment_id, shipper_id, pickup_time, pickup_contact, delivery_time, receiver,",
		"transit_time_hours and evaporation_rate_kg_per_hour.",
		"Times are 'YYYY-MM-DD HH:MM' in UTC. transit_time_hours and evaporation_rate_kg_per_hour are numbers.",
		"Never output null. If a field is not present, omit it.",
	}, " ")

	var b strings.Builder
	b.WriteString("Shipment Logs:\n")
	b.WriteString(strings.Join(blocks, "\n---\n"))
	b.WriteString("\n\nJSON Schema:\n")
	b.WriteString(mustJSON(BuildShipmentJSONSchema()))

	return []Message{
		{Role: RoleSystem, Content: sys},
		{Role: RoleUser, Content: b.String()},
	}
}

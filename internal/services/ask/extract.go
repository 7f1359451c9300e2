package ask

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/joseph-ayodele/cryotrace/internal/analytics"
	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
	"github.com/joseph-ayodele/cryotrace/internal/llm"
)

var extractionTemperature = float32(0.3)

// Extract asks the LLM to restate the retrieved shipments as structured
// records. The answer is sanitized and validated against the extraction
// schema before it is decoded.
func (s *Service) Extract(ctx context.Context, req Request) ([]llm.ExtractedShipment, error) {
	start := time.Now()
	if err := validate(req, false); err != nil {
		return nil, err
	}
	ret, err := s.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(ret.Report.Shipments) == 0 {
		return []llm.ExtractedShipment{}, nil
	}
	if s.completer == nil {
		return nil, common.UpstreamError("no language model is configured", nil)
	}

	raw, err := s.completer.Complete(ctx, llm.ChatRequest{
		Messages:    llm.BuildExtractionMessages(blocks(ret.Report.Shipments)),
		Temperature: &extractionTemperature,
		JSON:        true,
	})
	if err != nil {
		return nil, common.UpstreamError("language model request failed", err)
	}

	out, err := s.decodeExtraction([]byte(raw))
	if err != nil {
		s.logger.Error("ask.extract.invalid", "error", err, "content", raw)
		return nil, common.UpstreamError("language model returned invalid shipment data", err)
	}
	s.logger.Info("ask.extract.ok",
		"shipper_id", req.ShipperID,
		"shipments", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (s *Service) decodeExtraction(raw []byte) ([]llm.ExtractedShipment, error) {
	validator, err := llm.CompileSchema(llm.BuildShipmentJSONSchema())
	if err != nil {
		return nil, err
	}
	doc := raw
	if err := validator.Validate(doc); err != nil {
		cleaned, _, sErr := llm.SanitizeExtraction(raw, s.logger)
		if sErr != nil {
			return nil, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := validator.Validate(cleaned); vErr != nil {
			return nil, fmt.Errorf("schema validation failed: %w", vErr)
		}
		doc = cleaned
	}

	var wrapper struct {
		Shipments []llm.ExtractedShipment `json:"shipments"`
	}
	if err := json.Unmarshal(doc, &wrapper); err != nil {
		return nil, fmt.Errorf("unmarshal shipments: %w", err)
	}
	return wrapper.Shipments, nil
}

func blocks(shipments []entity.Shipment) []string {
	out := make([]string, len(shipments))
	for i, sh := range shipments {
		out[i] = analytics.FormatForPrompt([]entity.Shipment{sh})
	}
	return out
}

package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"efakture/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// DraftSuggester turns a free-text description into invoice line items.
type DraftSuggester interface {
	SuggestDraft(ctx context.Context, description string, catalog []core.Product) (*DraftSuggestion, error)
}

// DraftAssistant is a DraftSuggester backed by the OpenAI Responses API.
type DraftAssistant struct {
	client *openai.Client
	model  string
}

// NewDraftAssistant returns an assistant using model, or gpt-4o when model is empty.
func NewDraftAssistant(apiKey, model string) *DraftAssistant {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = string(shared.ChatModelGPT4o)
	}
	return &DraftAssistant{client: &client, model: model}
}

func (a *DraftAssistant) SuggestDraft(ctx context.Context, description string, catalog []core.Product) (*DraftSuggestion, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("description is required")
	}
	prompt := fmt.Sprintf(`You help a Serbian company prepare an e-invoice.
Turn the description into invoice line items using ONLY products from the catalog below.
Rules:
1. product_id MUST be an id from the catalog.
2. qty and unit_price are decimal strings (e.g. "2", "1250.00"); unit_price excludes VAT.
3. tax_rate is one of 0, 10, 20 (Serbian VAT rates); use 20 unless the description says otherwise.
4. currency is one of RSD, EUR, USD; use RSD unless the description says otherwise.
5. Put anything that is not a line item (payment terms, references) in note.

Catalog (id | code | name | material type):
%s

Description: %s`, catalogLines(catalog), description)

	schemaMap, err := suggestionSchema()
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(a.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "invoice_draft_suggestion",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("Line items for an invoice draft"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}
	return ParseSuggestion([]byte(content), catalog)
}

func catalogLines(catalog []core.Product) string {
	if len(catalog) == 0 {
		return "(empty)"
	}
	var b strings.Builder
	for _, p := range catalog {
		material := ""
		if p.MaterialType != nil {
			material = *p.MaterialType
		}
		fmt.Fprintf(&b, "%d | %s | %s | %s\n", p.ID, p.Code, p.Name, material)
	}
	return b.String()
}

func suggestionSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(&DraftSuggestion{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}

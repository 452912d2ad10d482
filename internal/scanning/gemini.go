package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const scanTimeout = 30 * time.Second

// receiptPrompt asks for the bill form fields. %s is replaced by the
// accepted expense types.
const receiptPrompt = `You are reading a receipt or invoice attached to an employee expense report. Extract:

1. "name": a short label for the expense, starting with the merchant name (e.g. "SNCF - Paris Lyon").
2. "type": the expense category, exactly one of: %s. Use "" if none fits.
3. "date": the transaction date as YYYY-MM-DD.
4. "amount": the total amount including tax, as a number.
5. "vat": the tax amount, as a number. Use 0 if it is not shown.

Return ONLY valid JSON in this exact format:
{"name": "", "type": "", "date": "YYYY-MM-DD", "amount": 0, "vat": 0}

Use null for any field you cannot find. Do not add text or markdown around the JSON.`

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	types  []string
}

// NewGemini creates a Gemini scanner that classifies receipts into types
func NewGemini(apiKey, modelName string, types []string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
		types:  types,
	}, nil
}

// imageFormat maps a receipt content type to the format genai expects
func imageFormat(contentType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png":
		return "png", nil
	case "image/jpeg", "image/jpg", "":
		return "jpeg", nil
	}
	return "", fmt.Errorf("unsupported receipt content type %q", contentType)
}

// ScanReceipt asks Gemini for the bill fields shown on a receipt
func (g *Gemini) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error) {
	format, err := imageFormat(contentType)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	prompt := fmt.Sprintf(receiptPrompt, `"`+strings.Join(g.types, `", "`)+`"`)
	resp, err := g.model.GenerateContent(ctx, genai.ImageData(format, imageData), genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response from gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	data, err := parseReceiptJSON(text.String(), g.types)
	if err != nil {
		return nil, fmt.Errorf("parsing receipt data: %w", err)
	}
	return data, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}

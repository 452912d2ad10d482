package scanning

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order when the model ignores the requested format
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
}

// rawReceipt mirrors the JSON the model is asked to produce. Amounts may
// come back as numbers or quoted strings.
type rawReceipt struct {
	Name   string              `json:"name"`
	Type   string              `json:"type"`
	Date   string              `json:"date"`
	Amount decimal.NullDecimal `json:"amount"`
	VAT    decimal.NullDecimal `json:"vat"`
}

// parseReceiptJSON extracts receipt data from a model response, which may be
// wrapped in markdown fences or surrounded by prose
func parseReceiptJSON(text string, types []string) (*ReceiptData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")

	start := strings.Index(text, "{")
	if start == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	var raw rawReceipt
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data := &ReceiptData{
		Name:   strings.TrimSpace(raw.Name),
		Date:   normalizeDate(raw.Date),
		Amount: roundAmount(raw.Amount),
		VAT:    roundAmount(raw.VAT),
	}
	if slices.Contains(types, raw.Type) {
		data.Type = raw.Type
	}
	return data, nil
}

// normalizeDate returns d as YYYY-MM-DD, or "" when it cannot be read
func normalizeDate(d string) string {
	d = strings.TrimSpace(d)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, d); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// roundAmount rounds to whole euros, half away from zero
func roundAmount(v decimal.NullDecimal) int {
	if !v.Valid || v.Decimal.IsNegative() {
		return 0
	}
	return int(v.Decimal.Round(0).IntPart())
}

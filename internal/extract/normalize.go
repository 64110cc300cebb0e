package extract

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

// Rules drive payload normalization. The zero value is unusable; start
// from DefaultRules or LoadRules.
type Rules struct {
	FieldAliases    map[string][]string `yaml:"field_aliases"`
	PaymentKeywords map[string][]string `yaml:"payment_keywords"`
	DateFormats     []string            `yaml:"date_formats"`
	DefaultCurrency string              `yaml:"default_currency"`
	DefaultDocType  string              `yaml:"default_document_type"`
}

// DefaultRules returns the built-in normalization rules. They cover the
// field names the supported models actually emit.
func DefaultRules() Rules {
	return Rules{
		FieldAliases: map[string][]string{
			"document_type":  {"document_type", "doc_type", "type"},
			"vendor_name":    {"vendor_name", "vendor", "merchant", "merchant_name", "seller", "supplier", "company"},
			"invoice_number": {"invoice_number", "invoice_no", "invoice_id", "receipt_number", "number"},
			"invoice_date":   {"invoice_date", "date", "issue_date", "transaction_date"},
			"due_date":       {"due_date", "payment_due", "due"},
			"currency":       {"currency", "currency_code"},
			"subtotal":       {"subtotal", "sub_total", "net_amount"},
			"tax_amount":     {"tax_amount", "tax", "vat", "sales_tax"},
			"total_amount":   {"total_amount", "total", "grand_total", "amount_due", "amount"},
			"payment_method": {"payment_method", "payment_type", "paid_with"},
			"line_items":     {"line_items", "items", "lines", "products"},
			"notes":          {"notes", "memo", "comments"},
			"confidence":     {"confidence", "model_confidence", "extraction_confidence"},
			"ocr_text":       {"ocr_text", "raw_text", "full_text"},
		},
		PaymentKeywords: map[string][]string{
			"card":          {"visa", "mastercard", "amex", "credit", "debit", "card"},
			"cash":          {"cash"},
			"bank_transfer": {"ach", "wire", "transfer", "iban", "sepa"},
			"check":         {"check", "cheque"},
		},
		DateFormats: []string{
			"2006-01-02",
			time.RFC3339,
			"2006/01/02",
			"01/02/2006",
			"1/2/2006",
			"02.01.2006",
			"Jan 2, 2006",
			"January 2, 2006",
			"2 Jan 2006",
		},
		DefaultCurrency: "USD",
		DefaultDocType:  "invoice",
	}
}

// LoadRules reads rule overrides from a YAML file and merges them over
// the defaults. An empty path returns the defaults unchanged.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}

	var overrides Rules
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return Rules{}, fmt.Errorf("failed to parse rules file: %w", err)
	}

	rules.merge(overrides)
	return rules, nil
}

// merge overlays non-empty override fields. Alias and keyword overrides
// replace per key, so a file can retarget one field without restating
// the rest.
func (r *Rules) merge(overrides Rules) {
	for field, aliases := range overrides.FieldAliases {
		r.FieldAliases[field] = aliases
	}
	for method, keywords := range overrides.PaymentKeywords {
		r.PaymentKeywords[method] = keywords
	}
	if len(overrides.DateFormats) > 0 {
		r.DateFormats = overrides.DateFormats
	}
	if overrides.DefaultCurrency != "" {
		r.DefaultCurrency = overrides.DefaultCurrency
	}
	if overrides.DefaultDocType != "" {
		r.DefaultDocType = overrides.DefaultDocType
	}
}

var (
	// recoveredItemPattern matches columnar OCR lines: description, then
	// quantity, unit price, and line total separated by runs of spaces.
	recoveredItemPattern = regexp.MustCompile(`(?m)^(\S.{2,58}?)\s{2,}(\d+(?:\.\d+)?)\s+\$?(\d+(?:\.\d{1,2})?)\s+\$?(\d+(?:\.\d{1,2})?)\s*$`)

	// recoveredDatePattern matches the first ISO or US-style date in OCR text.
	recoveredDatePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4})\b`)

	currencySymbols = map[string]string{
		"$": "USD",
		"€": "EUR",
		"£": "GBP",
		"¥": "JPY",
	}
)

// Normalizer coerces loosely shaped model output into an InvoicePayload.
type Normalizer struct {
	rules          Rules
	paymentMethods []string
}

// NewNormalizer builds a normalizer for the given rules.
func NewNormalizer(rules Rules) *Normalizer {
	// Keyword matching has to be deterministic, so fix the method order.
	methods := make([]string, 0, len(rules.PaymentKeywords))
	for method := range rules.PaymentKeywords {
		methods = append(methods, method)
	}
	sort.Strings(methods)

	return &Normalizer{rules: rules, paymentMethods: methods}
}

// Normalize maps raw decoded JSON onto the payload shape, applying alias
// resolution, type coercion, and OCR-text recovery for missing fields.
// Structural validation is the caller's job.
func (n *Normalizer) Normalize(raw map[string]any) (*model.InvoicePayload, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty document payload")
	}

	fields := make(map[string]any, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = value
	}

	ocrText := n.pickString(fields, "ocr_text")

	payload := &model.InvoicePayload{
		DocumentType:    n.documentType(fields),
		VendorName:      strings.TrimSpace(n.pickString(fields, "vendor_name")),
		InvoiceNumber:   strings.TrimSpace(n.pickString(fields, "invoice_number")),
		Currency:        n.currency(fields),
		PaymentMethod:   n.paymentMethod(fields),
		Notes:           strings.TrimSpace(n.pickString(fields, "notes")),
		Subtotal:        n.pickFloat(fields, "subtotal"),
		TaxAmount:       n.pickFloat(fields, "tax_amount"),
		TotalAmount:     n.pickFloat(fields, "total_amount"),
		ModelConfidence: clamp01(n.pickFloat(fields, "confidence")),
	}

	if when, ok := n.pickDate(fields, "invoice_date"); ok {
		payload.InvoiceDate = when
	} else if recovered, ok := n.recoverDate(ocrText); ok {
		payload.InvoiceDate = recovered
	}
	if when, ok := n.pickDate(fields, "due_date"); ok {
		payload.DueDate = &when
	}

	payload.LineItems = n.lineItems(fields)
	if len(payload.LineItems) == 0 && ocrText != "" {
		payload.LineItems = n.recoverLineItems(ocrText)
	}

	// Amounts the model omitted can still be derived from what it gave us.
	if payload.TotalAmount == 0 && len(payload.LineItems) > 0 {
		payload.TotalAmount = payload.LineItemTotal() + payload.TaxAmount
	}
	if payload.Subtotal == 0 && payload.TotalAmount != 0 {
		payload.Subtotal = payload.TotalAmount - payload.TaxAmount
	}

	return payload, nil
}

// pick resolves a canonical field name through its alias list.
func (n *Normalizer) pick(fields map[string]any, field string) (any, bool) {
	aliases, ok := n.rules.FieldAliases[field]
	if !ok {
		aliases = []string{field}
	}
	for _, alias := range aliases {
		if value, ok := fields[alias]; ok {
			return value, true
		}
	}
	return nil, false
}

func (n *Normalizer) pickString(fields map[string]any, field string) string {
	value, ok := n.pick(fields, field)
	if !ok {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func (n *Normalizer) pickFloat(fields map[string]any, field string) float64 {
	value, ok := n.pick(fields, field)
	if !ok {
		return 0
	}
	f, _ := coerceFloat(value)
	return f
}

func (n *Normalizer) pickDate(fields map[string]any, field string) (time.Time, bool) {
	text := strings.TrimSpace(n.pickString(fields, field))
	if text == "" {
		return time.Time{}, false
	}
	return n.parseDate(text)
}

func (n *Normalizer) parseDate(text string) (time.Time, bool) {
	for _, layout := range n.rules.DateFormats {
		if when, err := time.Parse(layout, text); err == nil {
			return when, true
		}
	}
	return time.Time{}, false
}

func (n *Normalizer) documentType(fields map[string]any) model.DocumentType {
	text := strings.ToLower(n.pickString(fields, "document_type"))
	switch {
	case strings.Contains(text, "receipt"):
		return model.DocTypeReceipt
	case strings.Contains(text, "invoice"):
		return model.DocTypeInvoice
	default:
		return model.DocumentType(n.rules.DefaultDocType)
	}
}

func (n *Normalizer) currency(fields map[string]any) string {
	text := strings.TrimSpace(n.pickString(fields, "currency"))
	if code, ok := currencySymbols[text]; ok {
		return code
	}
	text = strings.ToUpper(text)
	if len(text) == 3 {
		return text
	}
	return n.rules.DefaultCurrency
}

// paymentMethod maps free-form payment text onto a canonical method via
// the keyword rules. Unrecognized text passes through lowercased.
func (n *Normalizer) paymentMethod(fields map[string]any) string {
	text := strings.ToLower(strings.TrimSpace(n.pickString(fields, "payment_method")))
	if text == "" {
		return ""
	}
	for _, method := range n.paymentMethods {
		for _, keyword := range n.rules.PaymentKeywords[method] {
			if strings.Contains(text, keyword) {
				return method
			}
		}
	}
	return text
}

func (n *Normalizer) lineItems(fields map[string]any) []model.LineItem {
	value, ok := n.pick(fields, "line_items")
	if !ok {
		return nil
	}
	entries, ok := value.([]any)
	if !ok {
		return nil
	}

	items := make([]model.LineItem, 0, len(entries))
	for _, entry := range entries {
		rawItem, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := coerceLineItem(rawItem)
		if item.Description == "" && item.LineTotal == 0 {
			continue
		}
		items = append(items, item)
	}
	return items
}

// coerceLineItem fills a line item from one decoded entry, deriving
// whichever of quantity, unit price, and total the model left out.
func coerceLineItem(raw map[string]any) model.LineItem {
	fields := make(map[string]any, len(raw))
	for key, value := range raw {
		fields[strings.ToLower(strings.TrimSpace(key))] = value
	}

	item := model.LineItem{
		Description: strings.TrimSpace(firstString(fields, "description", "desc", "item", "name", "product")),
		Category:    strings.TrimSpace(firstString(fields, "category")),
		Quantity:    firstFloat(fields, "quantity", "qty", "count"),
		UnitPrice:   firstFloat(fields, "unit_price", "price", "rate", "unit_cost"),
		LineTotal:   firstFloat(fields, "line_total", "total", "amount", "extended"),
	}

	if item.Quantity == 0 && item.LineTotal != 0 {
		item.Quantity = 1
	}
	if item.LineTotal == 0 && item.Quantity != 0 && item.UnitPrice != 0 {
		item.LineTotal = item.Quantity * item.UnitPrice
	}
	if item.UnitPrice == 0 && item.Quantity > 0 && item.LineTotal != 0 {
		item.UnitPrice = item.LineTotal / item.Quantity
	}
	return item
}

// recoverLineItems scrapes columnar item lines out of OCR text when the
// model returned none.
func (n *Normalizer) recoverLineItems(text string) []model.LineItem {
	matches := recoveredItemPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	items := make([]model.LineItem, 0, len(matches))
	for _, match := range matches {
		quantity, qtyOK := coerceFloat(match[2])
		unitPrice, unitOK := coerceFloat(match[3])
		lineTotal, totalOK := coerceFloat(match[4])
		if !qtyOK || !unitOK || !totalOK {
			continue
		}
		items = append(items, model.LineItem{
			Description: strings.TrimSpace(match[1]),
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			LineTotal:   lineTotal,
		})
	}
	return items
}

// recoverDate pulls the first recognizable date out of OCR text.
func (n *Normalizer) recoverDate(text string) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}
	match := recoveredDatePattern.FindString(text)
	if match == "" {
		return time.Time{}, false
	}
	return n.parseDate(match)
}

func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := fields[key]; ok {
			if s, ok := value.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func firstFloat(fields map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if value, ok := fields[key]; ok {
			if f, ok := coerceFloat(value); ok {
				return f
			}
		}
	}
	return 0
}

// coerceFloat accepts the number shapes models actually produce: JSON
// numbers, integers, and strings with currency symbols or separators.
func coerceFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		text := strings.TrimSpace(v)
		for symbol := range currencySymbols {
			text = strings.ReplaceAll(text, symbol, "")
		}
		text = strings.ReplaceAll(text, " ", "")
		// The last separator wins as the decimal point, so both
		// 1,234.56 and 1.234,56 come out right.
		dot := strings.LastIndex(text, ".")
		comma := strings.LastIndex(text, ",")
		switch {
		case comma > dot && dot >= 0:
			text = strings.ReplaceAll(text, ".", "")
			text = strings.ReplaceAll(text, ",", ".")
		case comma >= 0 && dot > comma:
			text = strings.ReplaceAll(text, ",", "")
		case comma >= 0:
			text = strings.ReplaceAll(text, ",", ".")
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

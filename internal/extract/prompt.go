package extract

import "fmt"

const extractionSystemPrompt = "You are an invoice and receipt data extraction engine. You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, markdown formatting, or commentary before or after the JSON. Start your response directly with { and end with }."

const extractionUserPrompt = `Extract the structured data from this document.

Return a JSON object with exactly these fields:
  "document_type": "invoice" or "receipt"
  "vendor_name": string, the issuing business
  "invoice_number": string, empty if absent
  "invoice_date": string, ISO 8601 (YYYY-MM-DD)
  "due_date": string, ISO 8601, empty if absent
  "currency": ISO 4217 code such as "USD"
  "subtotal": number
  "tax_amount": number
  "total_amount": number
  "payment_method": string, empty if absent
  "line_items": array of {"description": string, "quantity": number, "unit_price": number, "line_total": number, "category": string}
  "notes": string, empty if absent
  "confidence": number between 0 and 1, your confidence in this extraction

Use null for values you cannot read. Do not invent line items that are not on the document.`

// correctivePrompt asks the model to repair a reply that failed to parse.
// Each provider sends it at most once per extraction.
func correctivePrompt(parseErr error) string {
	return fmt.Sprintf("Your previous reply could not be parsed (%v). Respond again with ONLY the corrected JSON object. No markdown fences, no commentary.", parseErr)
}

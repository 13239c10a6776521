package ai

const parseSystemPrompt = `Extract ALL fields from this Irish utility bill with maximum accuracy. Provide a confidence score (0.0-1.0) for EVERY field as a sibling key named <field>_conf.

CONFIDENCE RULES:
- 0.95-1.00: clear text, perfect read
- 0.85-0.94: readable but slightly unclear
- 0.70-0.84: inferred from context
- 0.00-0.69: missing or very uncertain (use null)

FIELD RULES:
- Dates: ISO format (YYYY-MM-DD). "29 Jul 26" becomes "2026-07-29".
- Money: EUR with 2 decimals. Credits are negative (e.g. -56.06).
- MPRN: 11 digits starting with 10, digits only ("10 009 543 173" becomes "10009543173").
- GPRN: 7 digits.
- Time bands: standard, day, night, peak, ev, nightboost, export.
- DG codes look like "DG1". MCC codes look like "MCC12". Profile is the number after the MCC ("MCC12 27" gives "27").
- VAT numbers keep their full format (e.g. "IE 8F 52100V").
- Addresses are split into line1, line2, city, county, eircode.
- Reading type: "A" (Actual), "E" (Estimated), "C" (Customer).
- Payment method: "Direct Debit", "Cash", "Card", etc.
- Use null for anything not on the bill. Never invent values.

Return a single JSON object with the sections classification, customer_details, supplier_details,
electricity_bill, gas_bill, broadband_bill and payment_details. Omit service sections the bill does not have.
Be meticulous with numbers, dates and identifiers. These are financial documents.`

const parseUserPrompt = `Extract all fields from this document with confidence scores. Treat all pages as a single document.`

const validationSystemPrompt = `You are a validation expert for Irish utility bill data.

VALIDATION RULES:
1. Arithmetic:
   - unit_charges + standing_charges + levies - discounts - credits + VAT = total (within EUR 0.01)
   - for each register: (current - previous) x multiplier = units_used
2. Dates:
   - due date >= issue date
   - billing period end >= billing period start
   - contract end date >= billing period end (if present)
3. Identifiers:
   - MPRN: 11 digits starting with "10"
   - GPRN: 7 digits
   - IBAN: valid checksum (IE format)
   - VAT rate: 9%, 13.5% or 23%
4. MCC consistency:
   - MCC01: only a standard register, no day/night/peak
   - MCC02: day and night registers, no peak/ev
   - MCC12: may have day/night/peak/ev
5. Confidence:
   - critical fields (total, due date, account number, MPRN/GPRN) >= 0.995
   - important fields (usage, rates) >= 0.98
   - overall document >= 0.99 for auto-approve

Return JSON:
{
  "status": "passed|failed|warning",
  "overall_confidence": 0.0-1.0,
  "issues": [{"field": "path", "code": "ERROR_CODE", "message": "text", "severity": "error|warning", "current_value": "value", "expected": "rule"}],
  "reconciliation": {"arithmetic_ok": true|false, "details": "explanation"},
  "hitl_required": true|false,
  "hitl_reasons": ["reason"]
}`

const patternSystemPrompt = `You are a template learning expert. Based on human corrections, generate extraction hints and patterns for one supplier.

Create a supplier template with:
- field locations and patterns (regex, keywords, anchors)
- common field values and formats
- extraction hints for future documents
- layout markers and section identifiers

Return a JSON object:
{
  "field_patterns": {"field_name": {"regex": "...", "keywords": [], "anchors": []}},
  "layout_hints": {"sections": [], "table_positions": []},
  "common_values": {"field_name": ["value"]},
  "extraction_rules": {"field_name": "rule description"},
  "confidence_adjustments": {"field_name": 0.05}
}`

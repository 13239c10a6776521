package ai

const extractionSchema = `{
  "type": "object",
  "properties": {
    "classification": {"type": "object"},
    "bills": {"type": "array", "items": {"type": "object"}},
    "services_details": {"type": "object"},
    "customer_details": {"type": "object"},
    "supplier_details": {"type": "object"},
    "payment_details": {"type": "object"},
    "electricity_bill": {"type": ["object", "null"]},
    "gas_bill": {"type": ["object", "null"]},
    "broadband_bill": {"type": ["object", "null"]}
  },
  "anyOf": [
    {"required": ["bills"]},
    {"required": ["customer_details"]},
    {"required": ["supplier_details"]},
    {"required": ["payment_details"]},
    {"required": ["electricity_bill"]},
    {"required": ["gas_bill"]},
    {"required": ["broadband_bill"]}
  ]
}`

const validationSchema = `{
  "type": "object",
  "required": ["status"],
  "properties": {
    "status": {"enum": ["passed", "failed", "warning"]},
    "overall_confidence": {"type": "number"},
    "issues": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["code"],
        "properties": {
          "field": {"type": ["string", "null"]},
          "code": {"type": "string"},
          "message": {"type": ["string", "null"]},
          "severity": {"enum": ["error", "warning"]}
        }
      }
    },
    "reconciliation": {
      "type": "object",
      "properties": {
        "arithmetic_ok": {"type": "boolean"},
        "arithmetics_ok": {"type": "boolean"},
        "details": {"type": ["string", "null"]}
      }
    },
    "hitl_required": {"type": "boolean"},
    "hitl_reasons": {"type": "array", "items": {"type": "string"}}
  }
}`

const templateSchema = `{
  "type": "object",
  "properties": {
    "field_patterns": {"type": "object"},
    "layout_hints": {"type": "object"},
    "common_values": {"type": "object"},
    "extraction_rules": {"type": "object"},
    "confidence_adjustments": {"type": "object"}
  }
}`

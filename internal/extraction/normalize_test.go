package extraction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Onebillie/parsetastic/internal/models"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

const flatBill = `{
  "classification": {"document_class": "bill", "document_subclass": "electricity_bill", "supplier_name": "Electric Ireland", "confidence": 0.97},
  "customer_details": {
    "customer_name": "Mary Byrne", "customer_name_conf": 0.99,
    "account_number": "901234567", "account_number_conf": 0.999,
    "billing_address": {"line1": "12 Main Street", "city": "Cork", "county": "Co. Cork", "eircode": "T12 AB34", "eircode_conf": 0.93}
  },
  "supplier_details": {"supplier_name": "Electric Ireland", "invoice_number": "INV-1", "issue_date": "2024-03-01", "due_date": "2024-03-20", "due_date_conf": 0.998},
  "electricity_bill": {
    "mprn": "10012345678", "mprn_conf": 0.999, "mcc_code": "MCC01",
    "registers": [
      {"time_band": "24hr", "current_reading": 15000, "previous_reading": 14800, "units_used": 200, "unit_rate": 0.35, "units_used_conf": 0.96}
    ],
    "standing_charge": 12.5
  },
  "payment_details": {"total_amount_due": "€ 1,234.50", "total_amount_due_conf": 0.996},
  "unmapped": {"note": "x", "note_conf": 0.42}
}`

func TestNormalize_FlatShape(t *testing.T) {
	doc, err := Normalize(decode(t, flatBill))
	require.NoError(t, err)

	assert.Equal(t, models.ShapeFlat, doc.Shape)
	assert.True(t, doc.Services.Electricity)
	assert.False(t, doc.Services.Gas)
	require.Len(t, doc.Bills, 1)

	b := doc.Bills[0]
	assert.Equal(t, "electricity_bill", b.BillType)
	assert.Equal(t, "10012345678", b.Account.MPRN.Value)
	assert.Equal(t, "electricity_bill.mprn", b.Account.MPRN.Path)
	assert.Equal(t, "1234.5", b.Totals.TotalDue.Value.String())
	assert.Equal(t, "payment_details.total_amount_due", b.Totals.TotalDue.Path)
	require.NotNil(t, b.Electricity)
	require.Len(t, b.Electricity.Registers, 1)
	assert.Equal(t, "electricity_bill.registers[0].units_used", b.Electricity.Registers[0].UnitsUsed.Path)
	assert.Nil(t, b.Gas)
	assert.Equal(t, "Electric Ireland", doc.Supplier())
}

func TestNormalize_CollectsUnmappedScores(t *testing.T) {
	doc, err := Normalize(decode(t, flatBill))
	require.NoError(t, err)

	require.Len(t, doc.Extra, 1)
	assert.Equal(t, "unmapped.note", doc.Extra[0].Path)
	assert.InDelta(t, 0.42, doc.Extra[0].Confidence, 1e-9)

	paths := map[string]float64{}
	for _, s := range doc.Scores() {
		paths[s.Path] = s.Confidence
	}
	assert.Len(t, paths, 8)
	assert.Contains(t, paths, "customer_details.billing_address.eircode")
	assert.Contains(t, paths, "electricity_bill.registers[0].units_used")
	assert.Contains(t, paths, "unmapped.note")
}

const multiBillJSON = `{
  "services_details": {"electricity": true, "gas": "true", "broadband": false},
  "bills": [
    {
      "bill_type": "Dual Fuel",
      "supplier": {"name": "Bord Gais Energy", "name_conf": 0.99},
      "account": {"account_number": "5550001", "mprn": "10098765432", "mprn_conf": 0.97, "gprn": "1234567", "gprn_conf": 0.999, "dg_mapped_value": "DG1"},
      "billing": {"billing_period_start": "2024-01-01", "billing_period_end": "2024-02-29", "payment_due_date": "2024-03-15"},
      "totals": {"total_due": 210.40, "total_due_conf": 0.999, "pso_levy_total": "N/A"},
      "electricity_specific": {
        "meter_reads": [{"band": "Day", "current_read": 1200, "units_used": 300, "current_read_type": "Estimated"}],
        "unit_rates": [{"band": "Night", "rate_per_kwh": 0.18}]
      },
      "gas_specific": {"meter_reads": {"current_read": 4321}, "unit_rate_per_kwh": 0.12}
    }
  ]
}`

func TestNormalize_MultiBillShape(t *testing.T) {
	doc, err := Normalize(decode(t, multiBillJSON))
	require.NoError(t, err)

	assert.Equal(t, models.ShapeMultiBill, doc.Shape)
	assert.True(t, doc.Services.Electricity)
	assert.True(t, doc.Services.Gas)
	assert.False(t, doc.Services.Broadband)
	require.Len(t, doc.Bills, 1)

	b := doc.Bills[0]
	assert.Equal(t, "bills[0]", b.Path)
	assert.Equal(t, "bills[0].account.mprn", b.Account.MPRN.Path)
	assert.Equal(t, "DG1", b.Account.DG.Value)
	assert.False(t, b.Totals.PSOLevy.Found)
	require.NotNil(t, b.Electricity)
	require.NotNil(t, b.Gas)
	assert.Nil(t, b.Broadband)
	assert.True(t, b.Gas.HasReads)
	assert.Equal(t, "4321", b.Gas.CurrentReading.Value.String())
	assert.Equal(t, "Estimated", b.Electricity.Registers[0].ReadType.Value)
	assert.Equal(t, "Bord Gais Energy", doc.Supplier())
}

func TestNormalize_ScoresUnderUnexpectedShapesStillCount(t *testing.T) {
	raw := decode(t, `{"bills": [{
	  "bill_type": "dual fuel",
	  "account": {"mprn": "10012345678", "gprn": "1234567", "gprn_conf": 0.999},
	  "gas_specific": {"meter_reads": [{"current_read": 4321, "current_read_conf": 0.41}]},
	  "electricity_specific": {"unit_rates": [{"band": "Day", "rate_per_kwh": 0.3}, [{"rate_conf": 0.52}]]}
	}]}`)

	doc, err := Normalize(raw)
	require.NoError(t, err)

	paths := map[string]float64{}
	for _, s := range doc.Extra {
		paths[s.Path] = s.Confidence
	}
	assert.InDelta(t, 0.41, paths["bills[0].gas_specific.meter_reads[0].current_read"], 1e-9)
	assert.InDelta(t, 0.52, paths["bills[0].electricity_specific.unit_rates[1][0].rate"], 1e-9)
	require.NotNil(t, doc.Bills[0].Electricity)
	require.NotNil(t, doc.Bills[0].Gas)
	assert.False(t, doc.Bills[0].Gas.HasReads)
	assert.Len(t, doc.Bills[0].Electricity.UnitRates, 1)
}

func TestNormalize_NoContainers(t *testing.T) {
	_, err := Normalize(map[string]any{"classification": map[string]any{}})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrNoBills))
}

func TestNormalize_BroadbandDetectedByServiceNumbers(t *testing.T) {
	raw := decode(t, `{"bills": [
	  {"bill_type": "", "broadband_specific": {"service_numbers": {"landline_number": "021 555 0000"}, "speed": {"technology": "FTTH", "down_mbps": 500}}},
	  {"bill_type": "gas"}
	]}`)
	doc, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, doc.Bills, 2)

	assert.NotNil(t, doc.Bills[0].Broadband)
	assert.Nil(t, doc.Bills[0].Electricity)
	assert.Equal(t, "FTTH", doc.Bills[0].Broadband.ConnectionType.Value)
	assert.NotNil(t, doc.Bills[1].Gas)
	assert.Nil(t, doc.Bills[1].Broadband)
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{"1,234.50", "1234.5", true},
		{"€99", "99", true},
		{"13.5%", "13.5", true},
		{float64(42), "42", true},
		{json.Number("0.995"), "0.995", true},
		{"abc", "0", false},
		{"", "0", false},
		{true, "0", false},
	}
	for _, tt := range tests {
		got, ok := ParseDecimal(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if ok {
			assert.Equal(t, tt.want, got.String(), "%v", tt.in)
		}
	}
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, 2024, ParseDate("2024-03-01").Year())
	assert.Equal(t, 3, int(ParseDate("01/03/2024").Month()))
	assert.True(t, ParseDate("N/A").IsZero())
	assert.True(t, ParseDate("not a date").IsZero())
}

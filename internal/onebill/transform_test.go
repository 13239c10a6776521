package onebill

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Onebillie/parsetastic/internal/extraction"
	"github.com/Onebillie/parsetastic/internal/models"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

const dualFuel = `{
  "services_details": {"electricity": true, "gas": true, "broadband": false},
  "bills": [{
    "bill_type": "dual fuel",
    "supplier": {"name": "Bord Gais Energy"},
    "account": {
      "account_holder_name": "Sean Murphy",
      "account_number": "77001234",
      "account_address": "4 Harbour View, Cobh, Cork, Co. Cork, P24 X2Y3",
      "mprn": "10098765432", "mcc": "MCC02", "dg": "DG1", "profile_class": "02",
      "gprn": "1234567"
    },
    "billing": {
      "invoice_number": "BG-889",
      "bill_issue_date": "05/02/2025",
      "payment_due_date": "2025-02-25",
      "billing_period_start": "2025-01-01",
      "billing_period_end": "2025-01-31"
    },
    "totals": {"total_due": 312.4, "pso_levy_total": 3.23, "carbon_tax_total": 9.1},
    "electricity_specific": {
      "standing_charge_per_day": 0.7362,
      "meter_reads": [
        {"band": "Day", "current_read_type": "Estimated", "current_read": 41000, "previous_read": 40600, "units_used": 400},
        {"band": "Night", "current_read": 12000, "previous_read": 11850, "units_used": 150},
        {"band": "EV Charging", "current_read": 500, "previous_read": 450, "units_used": 50}
      ],
      "unit_rates": [
        {"band": "Day", "rate_per_kwh": 0.3421},
        {"band": "Night", "rate_per_kwh": 0.1822},
        {"band": "Standard", "rate_per_kwh": 0.3}
      ]
    },
    "gas_specific": {
      "meter_reads": {"current_read": 5512, "previous_read": 5400, "kwh_used": 1250},
      "unit_rate_per_kwh": 0.121,
      "standing_charge_per_day": 0.4
    }
  }]
}`

func TestTransform_DualFuelEmitsOneEntryPerService(t *testing.T) {
	out, err := NewTransformer(nil).TransformRaw(decode(t, dualFuel))
	require.NoError(t, err)

	require.Len(t, out.Bills.Electricity, 1)
	require.Len(t, out.Bills.Gas, 1)
	assert.Empty(t, out.Bills.Broadband)
	require.Len(t, out.Bills.Customers, 1)

	cus := out.Bills.Customers[0]
	assert.Equal(t, "Sean Murphy", cus.Details.CustomerName)
	assert.Equal(t, Address{Line1: "4 Harbour View", Line2: "Cobh", City: "Cork", County: "Co. Cork", Eircode: "P24 X2Y3"}, cus.Details.Address)
	assert.Equal(t, Services{Electricity: true, Gas: true}, cus.Services)

	e := out.Bills.Electricity[0]
	assert.Equal(t, "BG-889", e.Details.InvoiceNumber)
	assert.Equal(t, ElectricityMeter{MPRN: "10098765432", DG: "DG1", MCC: "MCC02", Profile: "02"}, e.Details.Meter)
	assert.Equal(t, NoDate, e.Details.ContractEndDate)
	assert.Equal(t, "2025-02-05", e.Supplier.IssueDate)
	assert.Equal(t, "2025-01-01 to 2025-01-31", e.Supplier.BillingPeriod)

	require.Len(t, e.Charges.MeterReadings, 1)
	r := e.Charges.MeterReadings[0]
	assert.Equal(t, "Estimated", r.ReadingType)
	assert.Equal(t, "2025-01-31", r.Date)
	assert.Equal(t, "41000", r.DayReading.String())
	assert.Equal(t, "12000", r.NightReading.String())
	assert.Equal(t, "500", r.NSHReading.String())

	u := e.Charges.DetailedUsage[0]
	assert.Equal(t, "400", u.DayKWh.String())
	assert.Equal(t, "150", u.NightKWh.String())
	assert.Equal(t, "50", u.EVKWh.String())

	assert.Equal(t, "0.3421", e.Charges.UnitRates.Day.String())
	assert.Equal(t, "0.1822", e.Charges.UnitRates.Night.String())
	assert.Equal(t, "0.3", e.Charges.UnitRates.Rate24h.String())
	assert.Equal(t, "0.3", e.Charges.UnitRates.NSH.String())
	assert.Equal(t, "0.7362", e.Charges.StandingCharge.String())
	assert.Equal(t, "3.23", e.Charges.PSOLevy.String())
	assert.Equal(t, "312.4", e.Financial.TotalDue.String())
	assert.Equal(t, "2025-02-25", e.Financial.PaymentDueDate)

	g := out.Bills.Gas[0]
	assert.Equal(t, "1234567", g.Details.Meter.GPRN)
	require.Len(t, g.Charges.MeterReadings, 1)
	assert.Equal(t, GasReading{MeterType: "m3", Date: "2025-01-31", Reading: g.Charges.MeterReadings[0].Reading}, g.Charges.MeterReadings[0])
	assert.Equal(t, "5512", g.Charges.MeterReadings[0].Reading.String())
	assert.Equal(t, "0.121", g.Charges.UnitRates.Rate.String())
	assert.Equal(t, "9.1", g.Charges.CarbonTax.String())
}

func TestTransform_JSONShape(t *testing.T) {
	out, err := NewTransformer(nil).TransformRaw(decode(t, dualFuel))
	require.NoError(t, err)

	body, err := json.Marshal(out)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(body, &back))
	bills := back["bills"].(map[string]any)
	assert.Equal(t, []any{}, bills["broadband"], "absent services are empty lists, not null")

	fin := bills["electricity"].([]any)[0].(map[string]any)["financial_information"].(map[string]any)
	assert.Equal(t, 312.4, fin["total_due"])
	assert.Contains(t, string(body), `"total_due":312.40`)
	assert.Contains(t, string(body), `"24_hour_rate":0.3`)
}

func TestTransform_FlatBroadband(t *testing.T) {
	raw := decode(t, `{
	  "customer_details": {
	    "customer_name": "Aoife Kelly", "account_number": "BB-1",
	    "billing_address": {"line1": "1 Quay St", "city": "Galway", "county": "Co. Galway", "eircode": "H91 AB12"}
	  },
	  "supplier_details": {"supplier_name": "Eir", "due_date": "N/A", "payment_method": "Direct Debit"},
	  "broadband_bill": {"phone_number": "091 123456", "package_name": "Fibre 500", "connection_type": "FTTH"},
	  "payment_details": {"total_amount_due": 65, "previous_balance": 60, "iban": "IE29AIBK93115212345678"}
	}`)
	out, err := NewTransformer(nil).TransformRaw(raw)
	require.NoError(t, err)

	assert.Empty(t, out.Bills.Electricity)
	assert.Empty(t, out.Bills.Gas)
	require.Len(t, out.Bills.Broadband, 1)

	cus := out.Bills.Customers[0]
	assert.Equal(t, Address{Line1: "1 Quay St", City: "Galway", County: "Co. Galway", Eircode: "H91 AB12"}, cus.Details.Address)

	bb := out.Bills.Broadband[0]
	assert.Equal(t, []string{"091 123456"}, bb.Details.PhoneNumbers)
	assert.Equal(t, "Fibre 500", bb.Supplier.TariffName)
	assert.Equal(t, "FTTH", bb.Service.ConnectionType)
	assert.NotNil(t, bb.Service.MobilePhoneNumbers)
	assert.Equal(t, "", bb.Package.Included.Bandwidth)
	assert.Equal(t, NoDate, bb.Financial.DueDate)
	assert.Equal(t, "60", bb.Financial.PreviousBillAmount.String())
	assert.Equal(t, "65", bb.Financial.TotalDue.String())
	assert.Equal(t, "Direct Debit", bb.Financial.PaymentMethod)
	assert.Equal(t, "IE29AIBK93115212345678", bb.Financial.Bank.IBAN)
}

func TestTransform_EmptyAndMissing(t *testing.T) {
	tr := NewTransformer(nil)

	_, err := tr.Transform(nil)
	assert.True(t, models.IsKind(err, models.ErrNoBills))

	_, err = tr.TransformRaw(map[string]any{"something": "else"})
	assert.True(t, models.IsKind(err, models.ErrNoBills))

	out, err := tr.TransformRaw(map[string]any{"bills": []any{}})
	require.NoError(t, err)
	assert.Empty(t, out.Bills.Customers)
	assert.NotNil(t, out.Bills.Electricity)
}

func TestTransform_MissingValuesUseDefaults(t *testing.T) {
	doc, err := extraction.Normalize(decode(t, `{"bills": [{"bill_type": "electricity", "electricity_specific": {}}]}`))
	require.NoError(t, err)

	out, err := NewTransformer(nil).Transform(doc)
	require.NoError(t, err)
	require.Len(t, out.Bills.Electricity, 1)

	e := out.Bills.Electricity[0]
	assert.Equal(t, "", e.Details.InvoiceNumber)
	assert.Equal(t, NoDate, e.Supplier.IssueDate)
	assert.Equal(t, "", e.Supplier.BillingPeriod)
	assert.Empty(t, e.Charges.MeterReadings)
	assert.True(t, e.Financial.TotalDue.IsZero())
	assert.Equal(t, "euro", e.Charges.UnitRates.RateCurrency)
}

func TestCommaAddressParser(t *testing.T) {
	p := CommaAddressParser{}

	tests := []struct {
		in   string
		want Address
	}{
		{"Apt 3, Dock Rd, Limerick", Address{Line1: "Apt 3", Line2: "Dock Rd", City: "Limerick"}},
		{"1 Main St, Ballina, Mayo, Co. Mayo, F26 K2P3", Address{Line1: "1 Main St", Line2: "Ballina", City: "Mayo", County: "Co. Mayo", Eircode: "F26 K2P3"}},
		{"Rosslare v94xk12", Address{Line1: "Rosslare v94xk12", Eircode: "v94xk12"}},
		{"", Address{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Parse(tt.in), tt.in)
	}
}

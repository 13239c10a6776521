package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Onebillie/parsetastic/internal/models"
)

func str(path, v string, conf float64) models.Valued[string] {
	return models.Valued[string]{Value: v, Found: true, Scored: true, Confidence: conf, Path: path}
}

func num(path, v string) models.Valued[decimal.Decimal] {
	return models.Valued[decimal.Decimal]{Value: decimal.RequireFromString(v), Found: true, Path: path}
}

func codes(r *models.ValidationResult) []string {
	out := make([]string, 0, len(r.Issues))
	for _, i := range r.Issues {
		out = append(out, i.Code)
	}
	return out
}

func cleanBill() models.Bill {
	return models.Bill{
		Account: models.Account{
			AccountNumber: str("bills[0].account.account_number", "901234567", 0.999),
			MPRN:          str("bills[0].account.mprn", "10012345678", 0.999),
			MCC:           str("bills[0].account.mcc", "MCC02", 0.999),
		},
		Billing: models.Billing{
			IssueDate:   str("bills[0].billing.bill_issue_date", "2025-02-01", 0.999),
			DueDate:     str("bills[0].billing.payment_due_date", "2025-03-01", 0.999),
			PeriodStart: str("bills[0].billing.billing_period_start", "2025-01-01", 0.999),
			PeriodEnd:   str("bills[0].billing.billing_period_end", "2025-01-31", 0.999),
		},
		Totals: models.Totals{
			TotalDue:        num("bills[0].totals.total_due", "120.00"),
			UnitCharges:     num("bills[0].totals.unit_charges_total", "90.00"),
			StandingCharges: num("bills[0].totals.standing_charges_total", "10.00"),
			PSOLevy:         num("bills[0].totals.pso_levy_total", "5.00"),
			Discounts:       num("bills[0].totals.discounts_total", "-5.00"),
			VATAmount:       num("bills[0].totals.vat_amount", "20.00"),
			VATRate:         num("bills[0].totals.vat_rate_percent", "9"),
		},
		Electricity: &models.Electricity{
			Registers: []models.Register{
				{Band: str("bills[0].electricity_specific.meter_reads[0].band", "Day", 0.999)},
				{Band: str("bills[0].electricity_specific.meter_reads[1].band", "Night", 0.999)},
			},
		},
	}
}

func TestValidate_CleanBillPasses(t *testing.T) {
	v := NewBillValidator(models.DefaultThresholds())
	r := v.Validate(&models.Document{Bills: []models.Bill{cleanBill()}})

	assert.Equal(t, models.StatusPassed, r.Status, "issues: %v", r.Issues)
	assert.Empty(t, r.Issues)
	assert.True(t, r.Reconciliation.ArithmeticOK)
	assert.False(t, r.HITLRequired)
	assert.InDelta(t, 0.999, r.OverallConfidence, 1e-9)
}

func TestValidate_ArithmeticMismatch(t *testing.T) {
	b := cleanBill()
	b.Totals.TotalDue = num("bills[0].totals.total_due", "120.02")

	r := NewBillValidator(models.DefaultThresholds()).Validate(&models.Document{Bills: []models.Bill{b}})

	assert.Equal(t, models.StatusFailed, r.Status)
	assert.False(t, r.Reconciliation.ArithmeticOK)
	assert.True(t, r.HITLRequired)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, models.CodeArithmeticMismatch, r.Issues[0].Code)
	assert.Equal(t, "120.00", r.Issues[0].Expected)
}

func TestValidate_ArithmeticWithinTolerance(t *testing.T) {
	b := cleanBill()
	b.Totals.TotalDue = num("bills[0].totals.total_due", "120.01")

	r := NewBillValidator(models.DefaultThresholds()).Validate(&models.Document{Bills: []models.Bill{b}})
	assert.True(t, r.Reconciliation.ArithmeticOK)
}

func TestValidate_FlatBillFallsBackToServiceLines(t *testing.T) {
	b := models.Bill{
		Totals: models.Totals{TotalDue: num("payment_details.total_amount_due", "61.00")},
		Electricity: &models.Electricity{
			Registers: []models.Register{{
				UnitsUsed: num("electricity_bill.registers[0].units_used", "200"),
				UnitRate:  num("electricity_bill.registers[0].unit_rate", "0.25"),
			}},
			StandingCharge: num("electricity_bill.standing_charge", "6.00"),
			VATAmount:      num("electricity_bill.vat_amount", "5.00"),
		},
	}
	r := NewBillValidator(models.DefaultThresholds()).Validate(&models.Document{Bills: []models.Bill{b}})
	assert.True(t, r.Reconciliation.ArithmeticOK, r.Reconciliation.Details)
}

func TestValidate_DateOrder(t *testing.T) {
	b := cleanBill()
	b.Billing.DueDate = str("bills[0].billing.payment_due_date", "2025-01-15", 0.999)
	b.Billing.ContractEndDate = str("bills[0].billing.contract_end_date", "2024-12-31", 0.999)

	r := NewBillValidator(models.DefaultThresholds()).Validate(&models.Document{Bills: []models.Bill{b}})
	assert.Equal(t, []string{models.CodeDateOrder, models.CodeDateOrder}, codes(r))
	assert.Equal(t, models.StatusFailed, r.Status)
}

func TestValidate_Identifiers(t *testing.T) {
	b := cleanBill()
	b.Account.MPRN = str("bills[0].account.mprn", "2001234567", 0.999)
	b.Account.GPRN = str("bills[0].account.gprn", "12345", 0.999)
	b.Totals.IBAN = str("bills[0].broadband_specific.bank_transfer.iban", "IE29 AIBK 9311 5212 3456 79", 0.999)

	r := NewBillValidator(models.DefaultThresholds()).Validate(&models.Document{Bills: []models.Bill{b}})
	assert.ElementsMatch(t, []string{models.CodeInvalidMPRN, models.CodeInvalidGPRN, models.CodeInvalidIBAN}, codes(r))
}

func TestValidIBAN(t *testing.T) {
	assert.True(t, ValidIBAN("IE29 AIBK 9311 5212 3456 78"))
	assert.True(t, ValidIBAN("GB82WEST12345698765432"))
	assert.False(t, ValidIBAN("IE29AIBK931152123456"))
	assert.False(t, ValidIBAN("not an iban"))
}

func TestValidate_UnexpectedVATRateIsWarning(t *testing.T) {
	b := cleanBill()
	b.Totals.VATRate = num("bills[0].totals.vat_rate_percent", "0.21")

	r := NewBillValidator(models.DefaultThresholds()).Validate(&models.Document{Bills: []models.Bill{b}})
	assert.Equal(t, []string{models.CodeUnexpectedVATRate}, codes(r))
	assert.Equal(t, models.StatusWarning, r.Status)
	assert.False(t, r.HITLRequired)

	b.Totals.VATRate = num("bills[0].totals.vat_rate_percent", "0.135")
	r = NewBillValidator(models.DefaultThresholds()).Validate(&models.Document{Bills: []models.Bill{b}})
	assert.Empty(t, r.Issues)
}

func TestValidate_MCCConsistency(t *testing.T) {
	tests := []struct {
		name  string
		mcc   string
		bands []string
		fails int
	}{
		{"single rate with 24h", "MCC01", []string{"24 Hour"}, 0},
		{"single rate with day", "MCC01", []string{"Day", "Night"}, 1},
		{"day night complete", "02", []string{"Day", "Night"}, 0},
		{"day night missing night", "MCC02", []string{"Day"}, 1},
		{"day night with peak", "MCC02", []string{"Day", "Night", "Peak"}, 1},
		{"smart meter", "MCC12", []string{"Day", "Night", "Peak", "EV"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := cleanBill()
			b.Account.MCC = str("bills[0].account.mcc", tt.mcc, 0.999)
			b.Electricity.Registers = nil
			for _, band := range tt.bands {
				b.Electricity.Registers = append(b.Electricity.Registers, models.Register{Band: str("band", band, 0.999)})
			}
			r := NewBillValidator(models.DefaultThresholds()).Validate(&models.Document{Bills: []models.Bill{b}})
			n := 0
			for _, c := range codes(r) {
				if c == models.CodeMCCInconsistent {
					n++
				}
			}
			assert.Equal(t, tt.fails, n)
		})
	}
}

func TestValidate_RegisterArithmetic(t *testing.T) {
	b := cleanBill()
	b.Electricity.Multiplier = num("m", "1")
	b.Electricity.Registers[0].Current = num("c", "1500")
	b.Electricity.Registers[0].Previous = num("p", "1200")
	b.Electricity.Registers[0].UnitsUsed = num("bills[0].electricity_specific.meter_reads[0].units_used", "250")

	r := NewBillValidator(models.DefaultThresholds()).Validate(&models.Document{Bills: []models.Bill{b}})
	require.Equal(t, []string{models.CodeRegisterMismatch}, codes(r))
	assert.Equal(t, "300", r.Issues[0].Expected)
}

func TestValidate_ConfidenceBars(t *testing.T) {
	b := cleanBill()
	// Critical field below the critical bar is left to the review gate.
	b.Account.MPRN = str("bills[0].account.mprn", "10012345678", 0.97)
	b.Billing.PeriodEnd = str("bills[0].billing.billing_period_end", "2025-01-31", 0.95)

	r := NewBillValidator(models.DefaultThresholds()).Validate(&models.Document{Bills: []models.Bill{b}})
	assert.Equal(t, []string{models.CodeLowConfidence, models.CodeLowOverall}, codes(r))
	assert.Equal(t, "bills[0].billing.billing_period_end", r.Issues[0].Field)
	assert.Equal(t, models.StatusWarning, r.Status)
}

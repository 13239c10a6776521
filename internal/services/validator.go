package services

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Onebillie/parsetastic/internal/confidence"
	"github.com/Onebillie/parsetastic/internal/extraction"
	"github.com/Onebillie/parsetastic/internal/models"
)

var (
	mprnPattern = regexp.MustCompile(`^10[0-9]{9}$`)
	gprnPattern = regexp.MustCompile(`^[0-9]{7}$`)
	ibanPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{10,30}$`)
)

// Irish VAT rates that appear on utility bills.
var allowedVATRates = []decimal.Decimal{
	decimal.NewFromInt(9),
	decimal.RequireFromString("13.5"),
	decimal.NewFromInt(23),
}

// registerTolerance is how far (current - previous) * multiplier may drift from units used, in kWh.
var registerTolerance = decimal.NewFromInt(1)

// BillValidator runs the deterministic checks on a canonical document.
type BillValidator struct {
	thresholds models.Thresholds
	tolerance  decimal.Decimal
}

// NewBillValidator creates a validator with the given bars; zero values take the defaults.
func NewBillValidator(t models.Thresholds) *BillValidator {
	t = t.WithDefaults()
	return &BillValidator{
		thresholds: t,
		tolerance:  decimal.NewFromFloat(t.ArithmeticTolerance),
	}
}

// Validate performs every rule that applies to the bills present. Findings are data, never errors.
func (v *BillValidator) Validate(doc *models.Document) *models.ValidationResult {
	result := &models.ValidationResult{
		Status:         models.StatusPassed,
		Issues:         []models.ValidationIssue{},
		Reconciliation: models.Reconciliation{ArithmeticOK: true},
		HITLReasons:    []string{},
	}
	if doc == nil {
		return result
	}
	result.OverallConfidence = confidence.Overall(doc)

	var details []string
	for _, b := range doc.Bills {
		// 1. Charges reconcile to the total
		if d := v.validateArithmetic(b, result); d != "" {
			details = append(details, d)
		}

		// 2. Register reads agree with units used
		v.validateRegisters(b, result)

		// 3. Date ordering
		v.validateDates(b, result)

		// 4. Identifier formats
		v.validateIdentifiers(b, result)

		// 5. VAT rates
		v.validateVATRates(b, result)

		// 6. Meter configuration against registers
		v.validateMCC(b, result)
	}
	result.Reconciliation.Details = strings.Join(details, "; ")

	// 7. Confidence bars
	v.validateConfidence(doc, result)

	finish(result)
	return result
}

// finish derives the verdict from the issue list.
func finish(result *models.ValidationResult) {
	result.Status = models.StatusPassed
	for _, issue := range result.Issues {
		switch issue.Severity {
		case models.SeverityError:
			result.Status = models.StatusFailed
			result.HITLRequired = true
			result.HITLReasons = append(result.HITLReasons, issue.Code+": "+issue.Message)
		case models.SeverityWarning:
			result.Status = models.WorseStatus(result.Status, models.StatusWarning)
		}
	}
}

func addIssue(result *models.ValidationResult, field, code, severity, message, current, expected string) {
	result.Issues = append(result.Issues, models.ValidationIssue{
		Field:        field,
		Code:         code,
		Message:      message,
		Severity:     severity,
		CurrentValue: current,
		Expected:     expected,
	})
}

// sumFound adds the found values, reporting whether any was found.
func sumFound(values ...models.Valued[decimal.Decimal]) (decimal.Decimal, bool) {
	total := decimal.Zero
	found := false
	for _, val := range values {
		if val.Found {
			total = total.Add(val.Value)
			found = true
		}
	}
	return total, found
}

// chargeComponents gathers itemised charges, preferring bill level totals and falling back to per service lines.
func chargeComponents(b models.Bill) (units, standing, levies, discounts, credits, vat decimal.Decimal, ok bool) {
	t := b.Totals
	e, g, bb := b.Electricity, b.Gas, b.Broadband

	if t.UnitCharges.Found {
		units, ok = t.UnitCharges.Value, true
	} else {
		if e != nil {
			for _, r := range e.Registers {
				switch {
				case r.UnitCharge.Found:
					units, ok = units.Add(r.UnitCharge.Value), true
				case r.UnitsUsed.Found && r.UnitRate.Found:
					units, ok = units.Add(r.UnitsUsed.Value.Mul(r.UnitRate.Value)), true
				}
			}
		}
		if g != nil && g.UnitsKWh.Found && g.UnitRate.Found {
			units, ok = units.Add(g.UnitsKWh.Value.Mul(g.UnitRate.Value)), true
		}
		if bb != nil && bb.MonthlyCharge.Found {
			units, ok = units.Add(bb.MonthlyCharge.Value), true
		}
	}

	if t.StandingCharges.Found {
		standing = t.StandingCharges.Value
	} else {
		var parts []models.Valued[decimal.Decimal]
		if e != nil {
			parts = append(parts, e.StandingCharge)
		}
		if g != nil {
			parts = append(parts, g.StandingCharge)
		}
		standing, _ = sumFound(parts...)
	}

	pso := t.PSOLevy
	if !pso.Found && e != nil {
		pso = e.PSOLevy
	}
	carbon := t.CarbonTax
	if !carbon.Found && g != nil {
		carbon = g.CarbonTax
	}
	levies, _ = sumFound(pso, carbon)

	if t.Discounts.Found {
		discounts = t.Discounts.Value.Abs()
	} else if e != nil && e.DiscountAmount.Found {
		discounts = e.DiscountAmount.Value.Abs()
	}
	if t.Credits.Found {
		credits = t.Credits.Value.Abs()
	} else if e != nil && e.MicrogenCredit.Found {
		credits = e.MicrogenCredit.Value.Abs()
	}

	if t.VATAmount.Found {
		vat = t.VATAmount.Value
	} else {
		var parts []models.Valued[decimal.Decimal]
		if e != nil {
			parts = append(parts, e.VATAmount)
		}
		if g != nil {
			parts = append(parts, g.VATAmount)
		}
		if bb != nil {
			parts = append(parts, bb.VATAmount)
		}
		vat, _ = sumFound(parts...)
	}
	return units, standing, levies, discounts, credits, vat, ok
}

// validateArithmetic checks units + standing + levies - discounts - credits + VAT against the bill's charges.
// The current-period charges are the target when the bill states them, otherwise the total due.
func (v *BillValidator) validateArithmetic(b models.Bill, result *models.ValidationResult) string {
	target := b.Totals.CurrentCharges
	if !target.Found {
		target = b.Totals.TotalDue
	}
	if !target.Found {
		return ""
	}
	units, standing, levies, discounts, credits, vat, ok := chargeComponents(b)
	if !ok {
		return ""
	}

	computed := units.Add(standing).Add(levies).Sub(discounts).Sub(credits).Add(vat)
	diff := computed.Sub(target.Value).Abs()
	if diff.LessThanOrEqual(v.tolerance) {
		return fmt.Sprintf("%s reconciles at %s", target.Path, computed.StringFixed(2))
	}

	result.Reconciliation.ArithmeticOK = false
	addIssue(result, target.Path, models.CodeArithmeticMismatch, models.SeverityError,
		fmt.Sprintf("itemised charges sum to %s but the bill states %s", computed.StringFixed(2), target.Value.StringFixed(2)),
		target.Value.StringFixed(2), computed.StringFixed(2))
	return fmt.Sprintf("%s off by %s", target.Path, diff.StringFixed(2))
}

// validateRegisters checks (current - previous) * multiplier against units used.
func (v *BillValidator) validateRegisters(b models.Bill, result *models.ValidationResult) {
	if b.Electricity == nil {
		return
	}
	multiplier := decimal.NewFromInt(1)
	if b.Electricity.Multiplier.Found && b.Electricity.Multiplier.Value.IsPositive() {
		multiplier = b.Electricity.Multiplier.Value
	}
	for _, r := range b.Electricity.Registers {
		if !r.Current.Found || !r.Previous.Found || !r.UnitsUsed.Found {
			continue
		}
		// Meter rollover or replacement; nothing to compare.
		if r.Current.Value.LessThan(r.Previous.Value) {
			continue
		}
		expected := r.Current.Value.Sub(r.Previous.Value).Mul(multiplier)
		if expected.Sub(r.UnitsUsed.Value).Abs().GreaterThan(registerTolerance) {
			addIssue(result, r.UnitsUsed.Path, models.CodeRegisterMismatch, models.SeverityWarning,
				"register reads do not agree with units used",
				r.UnitsUsed.Value.String(), expected.String())
		}
	}
}

type datePair struct {
	earlier, later models.Valued[string]
	message        string
}

// validateDates checks due >= issue, period end >= start and contract end >= period end.
func (v *BillValidator) validateDates(b models.Bill, result *models.ValidationResult) {
	contractEnds := []models.Valued[string]{b.Billing.ContractEndDate}
	if b.Electricity != nil {
		contractEnds = append(contractEnds, b.Electricity.ContractEndDate)
	}
	if b.Gas != nil {
		contractEnds = append(contractEnds, b.Gas.ContractEndDate)
	}
	if b.Broadband != nil {
		contractEnds = append(contractEnds, b.Broadband.ContractEndDate)
	}

	pairs := []datePair{
		{b.Billing.IssueDate, b.Billing.DueDate, "due date is before the issue date"},
		{b.Billing.PeriodStart, b.Billing.PeriodEnd, "billing period ends before it starts"},
	}
	for _, c := range contractEnds {
		pairs = append(pairs, datePair{b.Billing.PeriodEnd, c, "contract ends before the billing period"})
	}

	checked := map[string]bool{}
	parse := func(d models.Valued[string]) (time.Time, bool) {
		if !d.Found {
			return time.Time{}, false
		}
		t := extraction.ParseDate(d.Value)
		if t.IsZero() {
			if !checked[d.Path] {
				checked[d.Path] = true
				addIssue(result, d.Path, models.CodeInvalidDate, models.SeverityWarning,
					"date could not be parsed", d.Value, "YYYY-MM-DD")
			}
			return t, false
		}
		return t, true
	}

	for _, p := range pairs {
		earlier, ok1 := parse(p.earlier)
		later, ok2 := parse(p.later)
		if !ok1 || !ok2 {
			continue
		}
		if later.Before(earlier) {
			addIssue(result, p.later.Path, models.CodeDateOrder, models.SeverityError,
				p.message, p.later.Value, ">= "+p.earlier.Value)
		}
	}
}

// validateIdentifiers checks meter references and bank details. Absent identifiers are not checked.
func (v *BillValidator) validateIdentifiers(b models.Bill, result *models.ValidationResult) {
	if id := b.Account.MPRN; id.Found {
		if !mprnPattern.MatchString(compact(id.Value)) {
			addIssue(result, id.Path, models.CodeInvalidMPRN, models.SeverityError,
				"MPRN must be 11 digits starting with 10", id.Value, "10XXXXXXXXX")
		}
	}
	if id := b.Account.GPRN; id.Found {
		if !gprnPattern.MatchString(compact(id.Value)) {
			addIssue(result, id.Path, models.CodeInvalidGPRN, models.SeverityError,
				"GPRN must be 7 digits", id.Value, "XXXXXXX")
		}
	}
	if id := b.Totals.IBAN; id.Found {
		if !ValidIBAN(id.Value) {
			addIssue(result, id.Path, models.CodeInvalidIBAN, models.SeverityError,
				"IBAN fails the format or mod-97 check", id.Value, "IE + 20 characters")
		}
	}
}

func compact(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// ValidIBAN checks the ISO 13616 layout and mod-97 checksum. Irish IBANs must be 22 characters.
func ValidIBAN(raw string) bool {
	iban := compact(raw)
	if !ibanPattern.MatchString(iban) {
		return false
	}
	if strings.HasPrefix(iban, "IE") && len(iban) != 22 {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			digits.WriteString(fmt.Sprint(int(r-'A') + 10))
			continue
		}
		digits.WriteRune(r)
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

// validateVATRates flags VAT rates that are not an Irish rate. Fractions (0.135) are read as percentages.
func (v *BillValidator) validateVATRates(b models.Bill, result *models.ValidationResult) {
	rates := []models.Valued[decimal.Decimal]{b.Totals.VATRate}
	if b.Electricity != nil {
		rates = append(rates, b.Electricity.VATRate)
	}
	if b.Gas != nil {
		rates = append(rates, b.Gas.VATRate)
	}
	if b.Broadband != nil {
		rates = append(rates, b.Broadband.VATRate)
	}
	for _, r := range rates {
		if !r.Found {
			continue
		}
		rate := r.Value
		if rate.IsPositive() && rate.LessThan(decimal.NewFromInt(1)) {
			rate = rate.Mul(decimal.NewFromInt(100))
		}
		known := false
		for _, allowed := range allowedVATRates {
			if rate.Equal(allowed) {
				known = true
				break
			}
		}
		if !known {
			addIssue(result, r.Path, models.CodeUnexpectedVATRate, models.SeverityWarning,
				"VAT rate is not 9%, 13.5% or 23%", r.Value.String(), "9, 13.5 or 23")
		}
	}
}

// mccCode normalises "MCC01", "01" and "1" to "01".
func mccCode(raw string) string {
	s := strings.TrimPrefix(compact(raw), "MCC")
	if len(s) == 1 {
		s = "0" + s
	}
	return s
}

// validateMCC checks the register set against the meter configuration code.
// MCC01 is single rate, MCC02 is day/night, MCC12 is smart and may carry any band.
func (v *BillValidator) validateMCC(b models.Bill, result *models.ValidationResult) {
	if b.Electricity == nil || !b.Account.MCC.Found || len(b.Electricity.Registers) == 0 {
		return
	}
	bands := map[string]bool{}
	for _, r := range b.Electricity.Registers {
		if r.Band.Found {
			bands[models.BandOf(r.Band.Value)] = true
		}
	}
	mcc := b.Account.MCC
	fail := func(msg string) {
		addIssue(result, mcc.Path, models.CodeMCCInconsistent, models.SeverityError, msg, mcc.Value, "")
	}
	switch mccCode(mcc.Value) {
	case "01":
		if bands[models.BandDay] || bands[models.BandNight] || bands[models.BandPeak] {
			fail("single rate meter carries time of use registers")
		}
	case "02":
		if !bands[models.BandDay] || !bands[models.BandNight] {
			fail("day/night meter must carry both day and night registers")
		}
		if bands[models.BandPeak] {
			fail("day/night meter carries a peak register")
		}
	}
}

// validateConfidence applies the important-field bar and the validator's own overall bar.
// Critical fields are held to a stricter bar by the review gate, so they are not repeated here.
func (v *BillValidator) validateConfidence(doc *models.Document, result *models.ValidationResult) {
	critical := map[string]bool{}
	for _, b := range doc.Bills {
		for _, f := range confidence.CriticalFields(b) {
			critical[f.Path] = true
		}
	}
	for _, s := range doc.Scores() {
		if critical[s.Path] || s.Confidence >= v.thresholds.Important {
			continue
		}
		addIssue(result, s.Path, models.CodeLowConfidence, models.SeverityWarning,
			fmt.Sprintf("confidence %.3f is below %.2f", s.Confidence, v.thresholds.Important),
			fmt.Sprintf("%.3f", s.Confidence), fmt.Sprintf(">= %.2f", v.thresholds.Important))
	}
	if result.OverallConfidence < v.thresholds.ValidatorOverall {
		addIssue(result, "overall_confidence", models.CodeLowOverall, models.SeverityWarning,
			fmt.Sprintf("overall confidence %.3f is below %.2f", result.OverallConfidence, v.thresholds.ValidatorOverall),
			fmt.Sprintf("%.3f", result.OverallConfidence), fmt.Sprintf(">= %.2f", v.thresholds.ValidatorOverall))
	}
}

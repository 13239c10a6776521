package extraction

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/Onebillie/parsetastic/internal/models"
)

var errMissingContainers = eris.New("neither a bills array nor a flat service section is present")

// Flat-shape top level sections.
const (
	keyCustomer    = "customer_details"
	keySupplier    = "supplier_details"
	keyElectricity = "electricity_bill"
	keyGas         = "gas_bill"
	keyBroadband   = "broadband_bill"
	keyPayment     = "payment_details"
	keyClass       = "classification"
	keyBills       = "bills"
	keyServices    = "services_details"
)

// DetectShape reports which layout raw uses. ok is false when neither layout's containers are present.
func DetectShape(raw map[string]any) (models.Shape, bool) {
	if _, isList := raw[keyBills].([]any); isList {
		return models.ShapeMultiBill, true
	}
	for _, k := range []string{keyCustomer, keySupplier, keyElectricity, keyGas, keyBroadband, keyPayment} {
		if _, isObj := raw[k].(map[string]any); isObj {
			return models.ShapeFlat, true
		}
	}
	return "", false
}

// Normalize turns either historical extraction layout into the canonical document.
// It is the only code that knows the two layouts exist.
func Normalize(raw map[string]any) (*models.Document, error) {
	shape, ok := DetectShape(raw)
	if !ok {
		return nil, models.WrapError(models.ErrNoBills, "extraction: normalize", errMissingContainers)
	}

	root := newSection(raw, "")
	doc := &models.Document{Shape: shape}
	doc.Classification = readClassification(root.child(keyClass))

	switch shape {
	case models.ShapeMultiBill:
		normalizeMultiBill(root, doc)
	default:
		normalizeFlat(root, doc)
	}

	root.leftovers(func(s models.Score) { doc.Extra = append(doc.Extra, s) })
	return doc, nil
}

func readClassification(s *section) models.Classification {
	c := models.Classification{
		DocumentClass:    s.str("document_class").Value,
		DocumentSubclass: s.str("document_subclass").Value,
		SupplierName:     s.str("supplier_name").Value,
	}
	if conf := s.num("confidence"); conf.Found {
		c.Confidence, _ = conf.Value.Float64()
	}
	return c
}

func normalizeFlat(root *section, doc *models.Document) {
	customer := root.child(keyCustomer)
	supplier := root.child(keySupplier)
	payment := root.child(keyPayment)
	address := customer.child("billing_address")

	bill := models.Bill{
		BillType: doc.Classification.DocumentType(),
		Supplier: models.Supplier{
			Name:      supplier.str("supplier_name"),
			VATNumber: supplier.str("vat_number"),
		},
		Account: models.Account{
			HolderName:    customer.str("customer_name"),
			AccountNumber: customer.str("account_number"),
			Address: models.Address{
				Line1:   address.str("line1"),
				Line2:   address.str("line2"),
				City:    address.str("city"),
				County:  address.str("county"),
				Eircode: address.str("eircode"),
			},
		},
		Billing: models.Billing{
			InvoiceNumber: supplier.str("invoice_number"),
			IssueDate:     supplier.str("issue_date"),
			DueDate:       supplier.str("due_date"),
			PeriodStart:   supplier.str("billing_period_start"),
			PeriodEnd:     supplier.str("billing_period_end"),
			PaymentMethod: supplier.str("payment_method"),
		},
		Totals: models.Totals{
			TotalDue:        payment.num("total_amount_due"),
			PreviousBalance: payment.num("previous_balance"),
			CurrentCharges:  payment.num("current_charges"),
			IBAN:            payment.str("iban"),
			BIC:             payment.str("bic"),
		},
	}

	if _, ok := root.m[keyElectricity].(map[string]any); ok {
		e := root.child(keyElectricity)
		bill.Account.MPRN = e.str("mprn")
		bill.Account.MCC = e.str("mcc_code")
		bill.Account.DG = e.str("dg_code")
		bill.Account.Profile = e.str("profile_code")
		bill.Electricity = flatElectricity(e)
		doc.Services.Electricity = true
	}
	if _, ok := root.m[keyGas].(map[string]any); ok {
		g := root.child(keyGas)
		bill.Account.GPRN = g.str("gprn")
		bill.Gas = flatGas(g)
		doc.Services.Gas = true
	}
	if _, ok := root.m[keyBroadband].(map[string]any); ok {
		bill.Broadband = flatBroadband(root.child(keyBroadband))
		doc.Services.Broadband = true
	}
	doc.Bills = []models.Bill{bill}
}

func flatElectricity(e *section) *models.Electricity {
	out := &models.Electricity{
		MeterNumber:         e.str("meter_number"),
		TariffName:          e.str("tariff_name"),
		ReadingType:         e.str("reading_type"),
		ContractEndDate:     e.str("contract_end_date"),
		Multiplier:          e.num("multiplier"),
		StandingCharge:      e.num("standing_charge"),
		PSOLevy:             e.num("pso_levy"),
		DiscountDescription: e.str("discount_description"),
		DiscountAmount:      e.num("discount_amount"),
		DiscountEndDate:     e.str("discount_end_date"),
		MicrogenCredit:      e.num("microgen_credit"),
		VATRate:             e.num("vat_rate"),
		VATAmount:           e.num("vat_amount"),
		TotalCharges:        e.num("total_charges"),
	}
	for _, r := range e.list("registers") {
		out.Registers = append(out.Registers, models.Register{
			Band:       r.str("time_band"),
			ReadType:   r.str("read_type"),
			Current:    r.num("current_reading"),
			Previous:   r.num("previous_reading"),
			UnitsUsed:  r.num("units_used"),
			UnitRate:   r.num("unit_rate"),
			UnitCharge: r.num("unit_charge"),
		})
	}
	return out
}

func flatGas(g *section) *models.Gas {
	_, hasReads := g.m["current_reading"]
	return &models.Gas{
		TariffName:      g.str("tariff_name"),
		ContractEndDate: g.str("contract_end_date"),
		HasReads:        hasReads,
		CurrentReading:  g.num("current_reading"),
		PreviousReading: g.num("previous_reading"),
		UnitsM3:         g.num("units_used_m3"),
		UnitsKWh:        g.num("units_used_kwh"),
		UnitRate:        g.num("unit_rate"),
		StandingCharge:  g.num("standing_charge"),
		CarbonTax:       g.num("carbon_tax"),
		VATRate:         g.num("vat_rate"),
		VATAmount:       g.num("vat_amount"),
		TotalCharges:    g.num("total_charges"),
	}
}

func flatBroadband(b *section) *models.Broadband {
	return &models.Broadband{
		PhoneNumber:        b.str("phone_number"),
		ServiceNumber:      b.str("account_number"),
		AccountHolderName:  b.str("account_holder_name"),
		ServiceDescription: b.str("service_description"),
		PackageName:        b.str("package_name"),
		ConnectionType:     b.str("connection_type"),
		ContractEndDate:    b.str("contract_end_date"),
		DataUsage:          b.str("data_usage"),
		MonthlyCharge:      b.num("monthly_charge"),
		VATRate:            b.num("vat_rate"),
		VATAmount:          b.num("vat_amount"),
		TotalCharges:       b.num("total_charges"),
	}
}

func normalizeMultiBill(root *section, doc *models.Document) {
	services := root.child(keyServices)
	doc.Services = models.ServiceFlags{
		Electricity: services.flag("electricity"),
		Gas:         services.flag("gas"),
		Broadband:   services.flag("broadband"),
	}

	bills := root.list(keyBills)
	for _, b := range bills {
		doc.Bills = append(doc.Bills, multiBill(b, doc.Services, len(bills) == 1))
	}
	if doc.Classification.SupplierName == "" && len(doc.Bills) > 0 {
		doc.Classification.SupplierName = doc.Bills[0].Supplier.Name.Value
	}
}

func multiBill(b *section, flags models.ServiceFlags, single bool) models.Bill {
	billType := strings.ToLower(b.str("bill_type").Value)
	supplier := b.child("supplier")
	account := b.child("account")
	billing := b.child("billing")
	totals := b.child("totals")
	elec := b.child("electricity_specific")
	gas := b.child("gas_specific")
	bb := b.child("broadband_specific")
	bank := bb.child("bank_transfer")

	out := models.Bill{
		Path:     b.path,
		BillType: billType,
		Supplier: models.Supplier{
			Name:      supplier.str("name"),
			VATNumber: supplier.str("vat_number"),
		},
		Account: models.Account{
			HolderName:      account.str("account_holder_name"),
			AccountNumber:   account.str("account_number"),
			Address:         models.Address{Text: account.str("account_address")},
			PremisesAddress: account.str("premises_address"),
			MPRN:            account.str("mprn"),
			GPRN:            account.str("gprn"),
			MCC:             account.str("mcc"),
			DG:              account.firstStr("dg", "dg_mapped_value"),
			Profile:         account.firstStr("profile_class", "dg_profile"),
		},
		Billing: models.Billing{
			InvoiceNumber:   billing.str("invoice_number"),
			IssueDate:       billing.str("bill_issue_date"),
			DueDate:         billing.str("payment_due_date"),
			PeriodStart:     billing.str("billing_period_start"),
			PeriodEnd:       billing.str("billing_period_end"),
			ContractEndDate: billing.str("contract_end_date"),
			PlanName:        billing.str("plan_name"),
			PaymentMethod:   billing.str("payment_method"),
		},
		Totals: models.Totals{
			TotalDue:        totals.num("total_due"),
			PreviousBalance: totals.num("previous_bill_amount"),
			CurrentCharges:  totals.firstNum("current_charges", "subtotal_before_vat"),
			VATAmount:       totals.num("vat_amount"),
			VATRate:         totals.num("vat_rate_percent"),
			PSOLevy:         totals.num("pso_levy_total"),
			CarbonTax:       totals.num("carbon_tax_total"),
			StandingCharges: totals.num("standing_charges_total"),
			UnitCharges:     totals.num("unit_charges_total"),
			Discounts:       totals.num("discounts_total"),
			Credits:         totals.num("credits_total"),
			IBAN:            bank.str("iban"),
			BIC:             bank.str("bic"),
		},
	}

	if strings.Contains(billType, "electric") || out.Account.MPRN.Found || (single && flags.Electricity) {
		out.Electricity = multiElectricity(elec)
	}
	if strings.Contains(billType, "gas") || out.Account.GPRN.Found || (single && flags.Gas) {
		out.Gas = multiGas(gas)
	}
	_, hasNumbers := bb.m["service_numbers"].(map[string]any)
	if strings.Contains(billType, "broadband") || strings.Contains(billType, "internet") || hasNumbers || (single && flags.Broadband) {
		out.Broadband = multiBroadband(bb, hasNumbers)
	}
	return out
}

func multiElectricity(e *section) *models.Electricity {
	out := &models.Electricity{
		StandingChargePerDay: e.num("standing_charge_per_day"),
	}
	for _, r := range e.list("meter_reads") {
		out.Registers = append(out.Registers, models.Register{
			Band:      r.str("band"),
			ReadType:  r.str("current_read_type"),
			Current:   r.num("current_read"),
			Previous:  r.num("previous_read"),
			UnitsUsed: r.num("units_used"),
		})
	}
	for _, r := range e.list("unit_rates") {
		out.UnitRates = append(out.UnitRates, models.BandRate{
			Band: r.str("band"),
			Rate: r.num("rate_per_kwh"),
		})
	}
	return out
}

func multiGas(g *section) *models.Gas {
	_, hasReads := g.m["meter_reads"].(map[string]any)
	reads := g.child("meter_reads")
	return &models.Gas{
		HasReads:             hasReads,
		CurrentReading:       reads.num("current_read"),
		PreviousReading:      reads.num("previous_read"),
		UnitsKWh:             reads.num("kwh_used"),
		UnitsM3:              reads.firstNum("volume_m3", "units_m3"),
		UnitRate:             g.num("unit_rate_per_kwh"),
		StandingChargePerDay: g.num("standing_charge_per_day"),
	}
}

func multiBroadband(b *section, hasNumbers bool) *models.Broadband {
	plan := b.child("plan")
	numbers := b.child("service_numbers")
	speed := b.child("speed")
	return &models.Broadband{
		HasServiceNumbers: hasNumbers,
		PhoneNumber:       numbers.str("landline_number"),
		ServiceNumber:     numbers.str("broadband_service_number"),
		UAN:               numbers.str("uan"),
		PackageName:       plan.str("name"),
		ContractEndDate:   plan.str("contract_end_date"),
		ConnectionType:    speed.str("technology"),
		SpeedDownMbps:     speed.num("down_mbps"),
		SpeedUpMbps:       speed.num("up_mbps"),
	}
}

package models

import (
	"reflect"
	"strings"

	"github.com/shopspring/decimal"
)

// Shape identifies which historical extraction layout a document arrived in.
type Shape string

const (
	ShapeFlat      Shape = "flat"
	ShapeMultiBill Shape = "multi_bill"
)

// ServiceKind is a utility service a bill can carry.
type ServiceKind string

const (
	ServiceElectricity ServiceKind = "electricity"
	ServiceGas         ServiceKind = "gas"
	ServiceBroadband   ServiceKind = "broadband"
)

// Classification is the extraction oracle's view of what the document is.
type Classification struct {
	DocumentClass    string  `json:"document_class"`
	DocumentSubclass string  `json:"document_subclass"`
	SupplierName     string  `json:"supplier_name"`
	Confidence       float64 `json:"confidence"`
}

// DocumentType returns the most specific type label available.
func (c Classification) DocumentType() string {
	if c.DocumentSubclass != "" {
		return c.DocumentSubclass
	}
	return c.DocumentClass
}

// ServiceFlags are the explicit per-service markers some extractions carry.
type ServiceFlags struct {
	Electricity bool `json:"electricity"`
	Gas         bool `json:"gas"`
	Broadband   bool `json:"broadband"`
}

// Document is the canonical, shape-independent extraction of one uploaded file.
type Document struct {
	Shape          Shape          `json:"shape"`
	Classification Classification `json:"classification"`
	Services       ServiceFlags   `json:"services"`
	Bills          []Bill         `json:"bills"`

	// Extra holds confidence annotations the adapter found but does not map to a typed field.
	Extra []Score `json:"extra,omitempty"`
}

// Supplier returns the first supplier name found on any bill.
func (d *Document) Supplier() string {
	if d.Classification.SupplierName != "" {
		return d.Classification.SupplierName
	}
	for _, b := range d.Bills {
		if b.Supplier.Name.Found {
			return b.Supplier.Name.Value
		}
	}
	return ""
}

// Bill is one bill inside a document. The flat shape always yields exactly one.
type Bill struct {
	Path     string   `json:"path"`
	BillType string   `json:"bill_type"`
	Supplier Supplier `json:"supplier"`
	Account  Account  `json:"account"`
	Billing  Billing  `json:"billing"`
	Totals   Totals   `json:"totals"`

	Electricity *Electricity `json:"electricity,omitempty"`
	Gas         *Gas         `json:"gas,omitempty"`
	Broadband   *Broadband   `json:"broadband,omitempty"`
}

type Supplier struct {
	Name      Valued[string] `json:"name"`
	VATNumber Valued[string] `json:"vat_number"`
}

// Address keeps both the structured lines (flat shape) and the free text form (multi-bill shape).
type Address struct {
	Line1   Valued[string] `json:"line1"`
	Line2   Valued[string] `json:"line2"`
	City    Valued[string] `json:"city"`
	County  Valued[string] `json:"county"`
	Eircode Valued[string] `json:"eircode"`
	Text    Valued[string] `json:"text"`
}

type Account struct {
	HolderName      Valued[string] `json:"holder_name"`
	AccountNumber   Valued[string] `json:"account_number"`
	Address         Address        `json:"address"`
	PremisesAddress Valued[string] `json:"premises_address"`
	MPRN            Valued[string] `json:"mprn"`
	GPRN            Valued[string] `json:"gprn"`
	MCC             Valued[string] `json:"mcc"`
	DG              Valued[string] `json:"dg"`
	Profile         Valued[string] `json:"profile"`
}

type Billing struct {
	InvoiceNumber   Valued[string] `json:"invoice_number"`
	IssueDate       Valued[string] `json:"issue_date"`
	DueDate         Valued[string] `json:"due_date"`
	PeriodStart     Valued[string] `json:"period_start"`
	PeriodEnd       Valued[string] `json:"period_end"`
	ContractEndDate Valued[string] `json:"contract_end_date"`
	PlanName        Valued[string] `json:"plan_name"`
	PaymentMethod   Valued[string] `json:"payment_method"`
}

type Totals struct {
	TotalDue        Valued[decimal.Decimal] `json:"total_due"`
	PreviousBalance Valued[decimal.Decimal] `json:"previous_balance"`
	CurrentCharges  Valued[decimal.Decimal] `json:"current_charges"`
	VATAmount       Valued[decimal.Decimal] `json:"vat_amount"`
	VATRate         Valued[decimal.Decimal] `json:"vat_rate"`
	PSOLevy         Valued[decimal.Decimal] `json:"pso_levy"`
	CarbonTax       Valued[decimal.Decimal] `json:"carbon_tax"`
	StandingCharges Valued[decimal.Decimal] `json:"standing_charges"`
	UnitCharges     Valued[decimal.Decimal] `json:"unit_charges"`
	Discounts       Valued[decimal.Decimal] `json:"discounts"`
	Credits         Valued[decimal.Decimal] `json:"credits"`
	IBAN            Valued[string]          `json:"iban"`
	BIC             Valued[string]          `json:"bic"`
}

// Register is one meter register (time band) line of an electricity bill.
type Register struct {
	Band       Valued[string]          `json:"band"`
	ReadType   Valued[string]          `json:"read_type"`
	Current    Valued[decimal.Decimal] `json:"current"`
	Previous   Valued[decimal.Decimal] `json:"previous"`
	UnitsUsed  Valued[decimal.Decimal] `json:"units_used"`
	UnitRate   Valued[decimal.Decimal] `json:"unit_rate"`
	UnitCharge Valued[decimal.Decimal] `json:"unit_charge"`
}

// BandRate is a unit rate quoted against a free text band label.
type BandRate struct {
	Band Valued[string]          `json:"band"`
	Rate Valued[decimal.Decimal] `json:"rate"`
}

type Electricity struct {
	MeterNumber          Valued[string]          `json:"meter_number"`
	TariffName           Valued[string]          `json:"tariff_name"`
	ReadingType          Valued[string]          `json:"reading_type"`
	ContractEndDate      Valued[string]          `json:"contract_end_date"`
	Multiplier           Valued[decimal.Decimal] `json:"multiplier"`
	Registers            []Register              `json:"registers"`
	UnitRates            []BandRate              `json:"unit_rates"`
	StandingCharge       Valued[decimal.Decimal] `json:"standing_charge"`
	StandingChargePerDay Valued[decimal.Decimal] `json:"standing_charge_per_day"`
	PSOLevy              Valued[decimal.Decimal] `json:"pso_levy"`
	DiscountDescription  Valued[string]          `json:"discount_description"`
	DiscountAmount       Valued[decimal.Decimal] `json:"discount_amount"`
	DiscountEndDate      Valued[string]          `json:"discount_end_date"`
	MicrogenCredit       Valued[decimal.Decimal] `json:"microgen_credit"`
	VATRate              Valued[decimal.Decimal] `json:"vat_rate"`
	VATAmount            Valued[decimal.Decimal] `json:"vat_amount"`
	TotalCharges         Valued[decimal.Decimal] `json:"total_charges"`
}

type Gas struct {
	TariffName           Valued[string]          `json:"tariff_name"`
	ContractEndDate      Valued[string]          `json:"contract_end_date"`
	HasReads             bool                    `json:"has_reads"`
	CurrentReading       Valued[decimal.Decimal] `json:"current_reading"`
	PreviousReading      Valued[decimal.Decimal] `json:"previous_reading"`
	UnitsM3              Valued[decimal.Decimal] `json:"units_m3"`
	UnitsKWh             Valued[decimal.Decimal] `json:"units_kwh"`
	UnitRate             Valued[decimal.Decimal] `json:"unit_rate"`
	StandingCharge       Valued[decimal.Decimal] `json:"standing_charge"`
	StandingChargePerDay Valued[decimal.Decimal] `json:"standing_charge_per_day"`
	CarbonTax            Valued[decimal.Decimal] `json:"carbon_tax"`
	VATRate              Valued[decimal.Decimal] `json:"vat_rate"`
	VATAmount            Valued[decimal.Decimal] `json:"vat_amount"`
	TotalCharges         Valued[decimal.Decimal] `json:"total_charges"`
}

type Broadband struct {
	HasServiceNumbers  bool                    `json:"has_service_numbers"`
	PhoneNumber        Valued[string]          `json:"phone_number"`
	ServiceNumber      Valued[string]          `json:"service_number"`
	UAN                Valued[string]          `json:"uan"`
	AccountHolderName  Valued[string]          `json:"account_holder_name"`
	ServiceDescription Valued[string]          `json:"service_description"`
	PackageName        Valued[string]          `json:"package_name"`
	ConnectionType     Valued[string]          `json:"connection_type"`
	ContractEndDate    Valued[string]          `json:"contract_end_date"`
	DataUsage          Valued[string]          `json:"data_usage"`
	SpeedDownMbps      Valued[decimal.Decimal] `json:"speed_down_mbps"`
	SpeedUpMbps        Valued[decimal.Decimal] `json:"speed_up_mbps"`
	MonthlyCharge      Valued[decimal.Decimal] `json:"monthly_charge"`
	VATRate            Valued[decimal.Decimal] `json:"vat_rate"`
	VATAmount          Valued[decimal.Decimal] `json:"vat_amount"`
	TotalCharges       Valued[decimal.Decimal] `json:"total_charges"`
}

// Scores returns every confidence annotation in the document, in field order.
func (d *Document) Scores() []Score {
	var out []Score
	walkScores(reflect.ValueOf(d), func(s Score) { out = append(out, s) })
	return out
}

var scorerType = reflect.TypeOf((*Scorer)(nil)).Elem()

func walkScores(v reflect.Value, add func(Score)) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return
		}
		walkScores(v.Elem(), add)
		return
	}
	if v.Type().Implements(scorerType) && v.Kind() == reflect.Struct {
		if s, ok := v.Interface().(Scorer).Score(); ok {
			add(s)
		}
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).IsExported() {
				continue
			}
			walkScores(v.Field(i), add)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			walkScores(v.Index(i), add)
		}
	}
}

// Time-of-use bands a register or rate label can fall into.
const (
	BandDay   = "day"
	BandNight = "night"
	BandPeak  = "peak"
	BandEV    = "ev"
	Band24h   = "24h"
)

// BandOf classifies a free text band label by case-insensitive substring.
// Anything unrecognised is the 24 hour (NSH) band.
// Matching is loose and ordered: "Evening" and "Level" land in the EV band, "Day/Night" in the day band.
// Stored extractions were banded by this exact rule.
func BandOf(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "day"):
		return BandDay
	case strings.Contains(l, "night"):
		return BandNight
	case strings.Contains(l, "peak"):
		return BandPeak
	case strings.Contains(l, "ev"):
		return BandEV
	default:
		return Band24h
	}
}

package onebill

import (
	"github.com/shopspring/decimal"
)

// NoDate is sent for every unknown date.
const NoDate = "0000-00-00"

const currencyEuro = "euro"

// Money is a monetary amount sent as a JSON number with two decimal places.
type Money struct{ decimal.Decimal }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

// Quantity is a reading, usage or rate sent as a plain JSON number.
type Quantity struct{ decimal.Decimal }

func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// Payload is the billing API body minus the phone number.
type Payload struct {
	Bills Bills `json:"bills"`
}

type Bills struct {
	Customers   []CustomerEntry    `json:"cus_details"`
	Electricity []ElectricityEntry `json:"electricity"`
	Gas         []GasEntry         `json:"gas"`
	Broadband   []BroadbandEntry   `json:"broadband"`
}

type CustomerEntry struct {
	Details  CustomerDetails `json:"details"`
	Services Services        `json:"services"`
}

type CustomerDetails struct {
	CustomerName string  `json:"customer_name"`
	Address      Address `json:"address"`
}

// Address is the decomposed postal address the billing API expects.
type Address struct {
	Line1   string `json:"line_1"`
	Line2   string `json:"line_2"`
	City    string `json:"city"`
	County  string `json:"county"`
	Eircode string `json:"eircode"`
}

type Services struct {
	Gas         bool `json:"gas"`
	Broadband   bool `json:"broadband"`
	Electricity bool `json:"electricity"`
}

type SupplierDetails struct {
	Name          string `json:"name"`
	TariffName    string `json:"tariff_name"`
	IssueDate     string `json:"issue_date"`
	BillingPeriod string `json:"billing_period"`
}

type Financial struct {
	TotalDue       Money  `json:"total_due"`
	AmountDue      Money  `json:"amount_due"`
	DueDate        string `json:"due_date"`
	PaymentDueDate string `json:"payment_due_date"`
}

type ElectricityEntry struct {
	Details   ElectricityDetails `json:"electricity_details"`
	Supplier  SupplierDetails    `json:"supplier_details"`
	Charges   ElectricityCharges `json:"charges_and_usage"`
	Financial Financial          `json:"financial_information"`
}

type ElectricityDetails struct {
	InvoiceNumber   string           `json:"invoice_number"`
	AccountNumber   string           `json:"account_number"`
	ContractEndDate string           `json:"contract_end_date"`
	Meter           ElectricityMeter `json:"meter_details"`
}

type ElectricityMeter struct {
	MPRN    string `json:"mprn"`
	DG      string `json:"dg"`
	MCC     string `json:"mcc"`
	Profile string `json:"profile"`
}

type ElectricityCharges struct {
	MeterReadings             []MeterReading `json:"meter_readings"`
	DetailedUsage             []KWhUsage     `json:"detailed_kWh_usage"`
	UnitRates                 UnitRates      `json:"unit_rates"`
	StandingCharge            Money          `json:"standing_charge"`
	StandingChargeCurrency    string         `json:"standing_charge_currency"`
	StandingChargePeriod      string         `json:"standing_charge_period"`
	NSHStandingCharge         Money          `json:"nsh_standing_charge"`
	NSHStandingChargeCurrency string         `json:"nsh_standing_charge_currency"`
	NSHStandingChargePeriod   string         `json:"nsh_standing_charge_period"`
	PSOLevy                   Money          `json:"pso_levy"`
}

type MeterReading struct {
	ReadingType  string   `json:"reading_type"`
	Date         string   `json:"date"`
	NSHReading   Quantity `json:"nsh_reading"`
	DayReading   Quantity `json:"day_reading"`
	NightReading Quantity `json:"night_reading"`
	PeakReading  Quantity `json:"peak_reading"`
}

type KWhUsage struct {
	StartReadDate string   `json:"start_read_date"`
	EndReadDate   string   `json:"end_read_date"`
	DayKWh        Quantity `json:"day_kWh"`
	NightKWh      Quantity `json:"night_kWh"`
	PeakKWh       Quantity `json:"peak_kWh"`
	EVKWh         Quantity `json:"ev_kWh"`
}

type UnitRates struct {
	Rate24h                Quantity `json:"24_hour_rate"`
	Day                    Quantity `json:"day"`
	Night                  Quantity `json:"night"`
	Peak                   Quantity `json:"peak"`
	EV                     Quantity `json:"ev"`
	NSH                    Quantity `json:"nsh"`
	RateCurrency           string   `json:"rate_currency"`
	RateDiscountPercentage Quantity `json:"rate_discount_percentage"`
}

type GasEntry struct {
	Details   GasDetails      `json:"gas_details"`
	Supplier  SupplierDetails `json:"supplier_details"`
	Charges   GasCharges      `json:"charges_and_usage"`
	Financial Financial       `json:"financial_information"`
}

type GasDetails struct {
	InvoiceNumber   string   `json:"invoice_number"`
	AccountNumber   string   `json:"account_number"`
	ContractEndDate string   `json:"contract_end_date"`
	Meter           GasMeter `json:"meter_details"`
}

type GasMeter struct {
	GPRN string `json:"gprn"`
}

type GasCharges struct {
	MeterReadings          []GasReading `json:"meter_readings"`
	UnitRates              GasRate      `json:"unit_rates"`
	StandingCharge         Money        `json:"standing_charge"`
	StandingChargeCurrency string       `json:"standing_charge_currency"`
	StandingChargePeriod   string       `json:"standing_charge_period"`
	CarbonTax              Money        `json:"carbon_tax"`
}

type GasReading struct {
	MeterType string   `json:"meter_type"`
	Date      string   `json:"date"`
	Reading   Quantity `json:"reading"`
}

type GasRate struct {
	Rate         Quantity `json:"rate"`
	RateCurrency string   `json:"rate_currency"`
}

type BroadbandEntry struct {
	Details   BroadbandDetails   `json:"broadband_details"`
	Supplier  SupplierDetails    `json:"supplier_details"`
	Service   BroadbandService   `json:"service_details"`
	Package   BroadbandPackage   `json:"package_information"`
	Financial BroadbandFinancial `json:"financial_information"`
}

type BroadbandDetails struct {
	AccountNumber string   `json:"account_number"`
	PhoneNumbers  []string `json:"phone_numbers"`
}

type BroadbandService struct {
	BroadbandNumber    string   `json:"broadband_number"`
	UANNumber          string   `json:"uan_number"`
	ConnectionType     string   `json:"connection_type"`
	HomePhoneNumber    string   `json:"home_phone_number"`
	MobilePhoneNumbers []string `json:"mobile_phone_numbers"`
	UtilityTypes       []string `json:"utility_types"`
}

type BroadbandPackage struct {
	PackageName     string   `json:"package_name"`
	ContractChanges string   `json:"contract_changes"`
	ContractEndDate string   `json:"contract_end_date"`
	Included        Included `json:"what_s_included"`
}

type Included struct {
	Calls              string `json:"calls"`
	Usage              string `json:"usage"`
	Bandwidth          string `json:"bandwidth"`
	UsageMinutes       string `json:"usage_minutes"`
	IntCallPackages    string `json:"int_call_packages"`
	LocalNationalCalls string `json:"local_national_calls"`
}

type BroadbandFinancial struct {
	PreviousBillAmount Money       `json:"previous_bill_amount"`
	TotalDue           Money       `json:"total_due"`
	AmountDue          Money       `json:"amount_due"`
	DueDate            string      `json:"due_date"`
	PaymentDueDate     string      `json:"payment_due_date"`
	PaymentMethod      string      `json:"payment_method"`
	PaymentsReceived   string      `json:"payments_received"`
	Bank               BankDetails `json:"bank_details"`
}

type BankDetails struct {
	IBAN string `json:"iban"`
	BIC  string `json:"bic"`
}

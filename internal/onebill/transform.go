// Package onebill maps canonical bills onto the OneBill API and submits them.
package onebill

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/Onebillie/parsetastic/internal/extraction"
	"github.com/Onebillie/parsetastic/internal/models"
)

// Transformer builds the billing API payload. It never fails on missing optional data.
type Transformer struct {
	addresses AddressParser
}

// NewTransformer returns a transformer; a nil parser means CommaAddressParser.
func NewTransformer(p AddressParser) *Transformer {
	if p == nil {
		p = CommaAddressParser{}
	}
	return &Transformer{addresses: p}
}

// TransformRaw normalises a stored extraction and transforms it.
func (t *Transformer) TransformRaw(raw map[string]any) (*Payload, error) {
	doc, err := extraction.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return t.Transform(doc)
}

// Transform emits one entry per detected service per bill. Services not detected get empty lists.
func (t *Transformer) Transform(doc *models.Document) (*Payload, error) {
	if doc == nil {
		return nil, models.WrapError(models.ErrNoBills, "onebill: transform", eris.New("no document"))
	}
	out := &Payload{Bills: Bills{
		Customers:   []CustomerEntry{},
		Electricity: []ElectricityEntry{},
		Gas:         []GasEntry{},
		Broadband:   []BroadbandEntry{},
	}}
	if len(doc.Bills) == 0 {
		return out, nil
	}

	out.Bills.Customers = append(out.Bills.Customers, t.customer(doc.Bills[0], doc.Services))
	for _, b := range doc.Bills {
		if b.Electricity != nil {
			out.Bills.Electricity = append(out.Bills.Electricity, electricity(b))
		}
		if b.Gas != nil {
			out.Bills.Gas = append(out.Bills.Gas, gas(b))
		}
		if b.Broadband != nil {
			out.Bills.Broadband = append(out.Bills.Broadband, broadband(b))
		}
	}
	return out, nil
}

func (t *Transformer) customer(b models.Bill, flags models.ServiceFlags) CustomerEntry {
	a := b.Account.Address
	addr := Address{
		Line1:   a.Line1.Value,
		Line2:   a.Line2.Value,
		City:    a.City.Value,
		County:  a.County.Value,
		Eircode: a.Eircode.Value,
	}
	if a.Text.Found {
		addr = t.addresses.Parse(a.Text.Value)
	}
	return CustomerEntry{
		Details: CustomerDetails{
			CustomerName: b.Account.HolderName.Value,
			Address:      addr,
		},
		Services: Services{
			Gas:         flags.Gas,
			Broadband:   flags.Broadband,
			Electricity: flags.Electricity,
		},
	}
}

// date renders a found date as YYYY-MM-DD, anything else as NoDate.
func date(v models.Valued[string]) string {
	if !v.Found {
		return NoDate
	}
	t := extraction.ParseDate(v.Value)
	if t.IsZero() {
		return NoDate
	}
	return t.Format("2006-01-02")
}

func period(b models.Bill) string {
	if !b.Billing.PeriodStart.Found || !b.Billing.PeriodEnd.Found {
		return ""
	}
	return fmt.Sprintf("%s to %s", date(b.Billing.PeriodStart), date(b.Billing.PeriodEnd))
}

func money(vs ...models.Valued[decimal.Decimal]) Money {
	for _, v := range vs {
		if v.Found {
			return Money{v.Value}
		}
	}
	return Money{decimal.Zero}
}

func qty(v models.Valued[decimal.Decimal]) Quantity {
	return Quantity{v.Or(decimal.Zero)}
}

func firstString(vs ...models.Valued[string]) string {
	for _, v := range vs {
		if v.Found {
			return v.Value
		}
	}
	return ""
}

func firstDate(vs ...models.Valued[string]) string {
	for _, v := range vs {
		if d := date(v); d != NoDate {
			return d
		}
	}
	return NoDate
}

func supplier(b models.Bill, tariff string) SupplierDetails {
	return SupplierDetails{
		Name:          b.Supplier.Name.Value,
		TariffName:    tariff,
		IssueDate:     date(b.Billing.IssueDate),
		BillingPeriod: period(b),
	}
}

func financial(b models.Bill, serviceTotal models.Valued[decimal.Decimal]) Financial {
	total := money(serviceTotal, b.Totals.TotalDue)
	due := date(b.Billing.DueDate)
	return Financial{TotalDue: total, AmountDue: total, DueDate: due, PaymentDueDate: due}
}

func electricity(b models.Bill) ElectricityEntry {
	e := b.Electricity
	entry := ElectricityEntry{
		Details: ElectricityDetails{
			InvoiceNumber:   b.Billing.InvoiceNumber.Value,
			AccountNumber:   b.Account.AccountNumber.Value,
			ContractEndDate: firstDate(e.ContractEndDate, b.Billing.ContractEndDate),
			Meter: ElectricityMeter{
				MPRN:    b.Account.MPRN.Value,
				DG:      b.Account.DG.Value,
				MCC:     b.Account.MCC.Value,
				Profile: b.Account.Profile.Value,
			},
		},
		Supplier: supplier(b, firstString(e.TariffName, b.Billing.PlanName)),
		Charges: ElectricityCharges{
			MeterReadings:             []MeterReading{},
			DetailedUsage:             []KWhUsage{},
			UnitRates:                 unitRates(e),
			StandingCharge:            money(e.StandingChargePerDay, e.StandingCharge),
			StandingChargeCurrency:    currencyEuro,
			StandingChargePeriod:      period(b),
			NSHStandingCharge:         Money{decimal.Zero},
			NSHStandingChargeCurrency: currencyEuro,
			PSOLevy:                   money(e.PSOLevy, b.Totals.PSOLevy),
		},
		Financial: financial(b, e.TotalCharges),
	}

	if len(e.Registers) > 0 {
		reading := MeterReading{
			ReadingType:  "Actual",
			Date:         date(b.Billing.PeriodEnd),
			NSHReading:   Quantity{decimal.Zero},
			DayReading:   Quantity{decimal.Zero},
			NightReading: Quantity{decimal.Zero},
			PeakReading:  Quantity{decimal.Zero},
		}
		if rt := firstString(e.Registers[0].ReadType, e.ReadingType); rt != "" {
			reading.ReadingType = rt
		}
		usage := KWhUsage{
			StartReadDate: date(b.Billing.PeriodStart),
			EndReadDate:   date(b.Billing.PeriodEnd),
			DayKWh:        Quantity{decimal.Zero},
			NightKWh:      Quantity{decimal.Zero},
			PeakKWh:       Quantity{decimal.Zero},
			EVKWh:         Quantity{decimal.Zero},
		}
		for _, r := range e.Registers {
			switch models.BandOf(r.Band.Value) {
			case models.BandDay:
				reading.DayReading, usage.DayKWh = qty(r.Current), qty(r.UnitsUsed)
			case models.BandNight:
				reading.NightReading, usage.NightKWh = qty(r.Current), qty(r.UnitsUsed)
			case models.BandPeak:
				reading.PeakReading, usage.PeakKWh = qty(r.Current), qty(r.UnitsUsed)
			case models.BandEV:
				reading.NSHReading, usage.EVKWh = qty(r.Current), qty(r.UnitsUsed)
			default:
				reading.NSHReading = qty(r.Current)
			}
		}
		entry.Charges.MeterReadings = append(entry.Charges.MeterReadings, reading)
		entry.Charges.DetailedUsage = append(entry.Charges.DetailedUsage, usage)
	}
	return entry
}

// unitRates buckets quoted rates by band. Flat extractions quote rates on the registers instead.
func unitRates(e *models.Electricity) UnitRates {
	rates := e.UnitRates
	if len(rates) == 0 {
		for _, r := range e.Registers {
			if r.UnitRate.Found {
				rates = append(rates, models.BandRate{Band: r.Band, Rate: r.UnitRate})
			}
		}
	}

	zero := Quantity{decimal.Zero}
	out := UnitRates{
		Rate24h: zero, Day: zero, Night: zero, Peak: zero, EV: zero, NSH: zero,
		RateCurrency:           currencyEuro,
		RateDiscountPercentage: zero,
	}
	for _, r := range rates {
		v := qty(r.Rate)
		switch models.BandOf(r.Band.Value) {
		case models.BandDay:
			out.Day = v
		case models.BandNight:
			out.Night = v
		case models.BandPeak:
			out.Peak = v
		case models.BandEV:
			out.EV = v
		default:
			out.Rate24h, out.NSH = v, v
		}
	}
	return out
}

func gas(b models.Bill) GasEntry {
	g := b.Gas
	entry := GasEntry{
		Details: GasDetails{
			InvoiceNumber:   b.Billing.InvoiceNumber.Value,
			AccountNumber:   b.Account.AccountNumber.Value,
			ContractEndDate: firstDate(g.ContractEndDate, b.Billing.ContractEndDate),
			Meter:           GasMeter{GPRN: b.Account.GPRN.Value},
		},
		Supplier: supplier(b, firstString(g.TariffName, b.Billing.PlanName)),
		Charges: GasCharges{
			MeterReadings:          []GasReading{},
			UnitRates:              GasRate{Rate: qty(g.UnitRate), RateCurrency: currencyEuro},
			StandingCharge:         money(g.StandingChargePerDay, g.StandingCharge),
			StandingChargeCurrency: currencyEuro,
			StandingChargePeriod:   period(b),
			CarbonTax:              money(g.CarbonTax, b.Totals.CarbonTax),
		},
		Financial: financial(b, g.TotalCharges),
	}
	if g.HasReads {
		entry.Charges.MeterReadings = append(entry.Charges.MeterReadings, GasReading{
			MeterType: "m3",
			Date:      date(b.Billing.PeriodEnd),
			Reading:   qty(g.CurrentReading),
		})
	}
	return entry
}

func broadband(b models.Bill) BroadbandEntry {
	bb := b.Broadband
	phones := []string{}
	if bb.PhoneNumber.Found {
		phones = append(phones, bb.PhoneNumber.Value)
	}
	bandwidth := ""
	if bb.SpeedDownMbps.Found || bb.SpeedUpMbps.Found {
		bandwidth = fmt.Sprintf("%s Mbps down / %s Mbps up",
			bb.SpeedDownMbps.Or(decimal.Zero).String(), bb.SpeedUpMbps.Or(decimal.Zero).String())
	}
	total := money(bb.TotalCharges, b.Totals.TotalDue)
	due := date(b.Billing.DueDate)

	return BroadbandEntry{
		Details: BroadbandDetails{
			AccountNumber: b.Account.AccountNumber.Value,
			PhoneNumbers:  phones,
		},
		Supplier: supplier(b, firstString(bb.PackageName, b.Billing.PlanName)),
		Service: BroadbandService{
			BroadbandNumber:    bb.ServiceNumber.Value,
			UANNumber:          bb.UAN.Value,
			ConnectionType:     bb.ConnectionType.Value,
			HomePhoneNumber:    bb.PhoneNumber.Value,
			MobilePhoneNumbers: []string{},
			UtilityTypes:       []string{},
		},
		Package: BroadbandPackage{
			PackageName:     bb.PackageName.Value,
			ContractEndDate: firstDate(bb.ContractEndDate, b.Billing.ContractEndDate),
			Included: Included{
				Usage:     strings.TrimSpace(bb.DataUsage.Value),
				Bandwidth: bandwidth,
			},
		},
		Financial: BroadbandFinancial{
			PreviousBillAmount: money(b.Totals.PreviousBalance),
			TotalDue:           total,
			AmountDue:          total,
			DueDate:            due,
			PaymentDueDate:     due,
			PaymentMethod:      b.Billing.PaymentMethod.Value,
			Bank: BankDetails{
				IBAN: b.Totals.IBAN.Value,
				BIC:  b.Totals.BIC.Value,
			},
		},
	}
}

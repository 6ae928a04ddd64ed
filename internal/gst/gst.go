// Package gst computes Indian GST splits for sale and purchase lines.
//
// Every amount is exact decimal arithmetic; rounding to paise is left to
// presentation.
package gst

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// Breakdown is the tax on one line. SGST and CGST are always equal.
type Breakdown struct {
	Taxable decimal.Decimal `json:"taxable"`
	Rate    decimal.Decimal `json:"rate"`
	SGST    decimal.Decimal `json:"sgst"`
	CGST    decimal.Decimal `json:"cgst"`
	GST     decimal.Decimal `json:"gst"`
}

// Line computes GST = taxable × rate / 100 and splits it into equal halves.
func Line(taxable, rate decimal.Decimal) Breakdown {
	total := taxable.Mul(rate).Div(hundred)
	half := total.Div(two)
	return Breakdown{Taxable: taxable, Rate: rate, SGST: half, CGST: half, GST: total}
}

// SplitRate applies half the nominal rate once for SGST and once for CGST.
// The result equals Line for every input.
func SplitRate(taxable, rate decimal.Decimal) Breakdown {
	half := taxable.Mul(rate.Div(two)).Div(hundred)
	return Breakdown{Taxable: taxable, Rate: rate, SGST: half, CGST: half, GST: half.Add(half)}
}

// Summary totals a set of lines.
type Summary struct {
	Lines         []Breakdown     `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	SGST          decimal.Decimal `json:"sgst"`
	CGST          decimal.Decimal `json:"cgst"`
	TotalGST      decimal.Decimal `json:"total_gst"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	AverageRate   decimal.Decimal `json:"average_rate"`
	EffectiveRate decimal.Decimal `json:"effective_rate"`
}

// Summarize adds up lines. AverageRate is the unweighted mean of the line
// rates; EffectiveRate is TotalGST as a percentage of Subtotal.
func Summarize(lines []Breakdown) Summary {
	s := Summary{Lines: lines}
	rates := make([]decimal.Decimal, 0, len(lines))
	for _, l := range lines {
		s.Subtotal = s.Subtotal.Add(l.Taxable)
		s.SGST = s.SGST.Add(l.SGST)
		s.CGST = s.CGST.Add(l.CGST)
		s.TotalGST = s.TotalGST.Add(l.GST)
		rates = append(rates, l.Rate)
	}
	s.GrandTotal = s.Subtotal.Add(s.TotalGST)
	s.AverageRate = AverageRate(rates)
	s.EffectiveRate = EffectiveRate(s.Subtotal, s.TotalGST)
	return s
}

// AverageRate is the arithmetic mean of rates, zero for none.
func AverageRate(rates []decimal.Decimal) decimal.Decimal {
	if len(rates) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, rates...).Div(decimal.NewFromInt(int64(len(rates))))
}

// EffectiveRate is gst / subtotal × 100, zero when subtotal is zero.
func EffectiveRate(subtotal, gst decimal.Decimal) decimal.Decimal {
	if subtotal.IsZero() {
		return decimal.Zero
	}
	return gst.Div(subtotal).Mul(hundred)
}

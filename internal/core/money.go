package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Currency formats amounts for display. Arithmetic always stays in decimal.
type Currency struct {
	Code    string
	unit    currency.Unit
	printer *message.Printer
}

var symbolOverrides = map[string]string{
	"INR": "₹",
}

var localeForCurrency = map[string]language.Tag{
	"INR": language.MustParse("en-IN"),
	"USD": language.AmericanEnglish,
	"GBP": language.BritishEnglish,
	"EUR": language.English,
}

// NewCurrency returns the formatter for an ISO code. Unknown codes keep
// the code itself as the symbol.
func NewCurrency(code string) Currency {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.XXX
	}
	tag, ok := localeForCurrency[code]
	if !ok {
		tag = language.English
	}
	return Currency{Code: code, unit: unit, printer: message.NewPrinter(tag)}
}

// Valid reports whether the code is a known ISO 4217 currency.
func (c Currency) Valid() bool {
	return c.unit != currency.XXX
}

func (c Currency) Symbol() string {
	if sym, ok := symbolOverrides[c.Code]; ok {
		return sym
	}
	if !c.Valid() {
		return c.Code
	}
	return c.printer.Sprint(currency.NarrowSymbol(c.unit))
}

// Format renders the amount with two decimals and the symbol as prefix.
// Digits come from the decimal itself; only the grouping of the integer part
// is left to the locale.
func (c Currency) Format(d decimal.Decimal) string {
	rounded := d.Round(2)
	whole, frac, _ := strings.Cut(rounded.Abs().StringFixed(2), ".")
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		whole = c.printer.Sprint(number.Decimal(n))
	}
	s := c.Symbol() + whole + "." + frac
	if rounded.IsNegative() {
		return "-" + s
	}
	return s
}

// PlainAmount renders the amount at the scale it was received with, so
// "50.00" stays "50.00" and "12.5" stays "12.5".
func PlainAmount(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

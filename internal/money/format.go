package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Format renders an amount with its currency symbol for the given language tag,
// e.g. "€ 12.50". Unknown codes fall back to the plain "12.50 XXX" form.
func Format(amount decimal.Decimal, currencyCode, lang string) string {
	m := New(amount, currencyCode)
	unit, err := currency.ParseISO(m.CurrencyCode)
	if err != nil {
		return m.String()
	}
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	value, _ := m.Round().Amount.Float64()
	p := message.NewPrinter(tag)
	return p.Sprint(currency.Symbol(unit.Amount(value)))
}

package export

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatNumber formats v with thousand separators and fixed decimals
func FormatNumber(v float64, decimals int) string {
	return printer.Sprintf("%.*f", decimals, v)
}

// FormatPercentage formats a fractional return as a percentage: 0.0123 -> "1.23%"
func FormatPercentage(v float64, decimals int) string {
	return printer.Sprintf("%.*f%%", decimals, v*100)
}

// FormatMarketCap abbreviates a market cap in billions or millions
func FormatMarketCap(v float64) string {
	switch {
	case v >= 1e9:
		return printer.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return printer.Sprintf("$%.2fM", v/1e6)
	default:
		return printer.Sprintf("$%.2f", v)
	}
}

// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatCurrency formats an amount in dollars with thousands separators.
func FormatCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")

	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	head := n % 3
	var b strings.Builder
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a fraction as a signed percentage: 0.1234 → "+12.34%".
func FormatPercent(fraction float64) string {
	value := fraction * 100
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatBps formats a fraction in basis points.
func FormatBps(fraction float64) string {
	return fmt.Sprintf("%.1f bps", fraction*10_000)
}

// FormatPnL formats a signed currency amount.
func FormatPnL(pnl float64) string {
	formatted := FormatCurrency(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatCompact formats an amount with a K/M/B suffix.
func FormatCompact(amount float64) string {
	abs := math.Abs(amount)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("$%.2fB", amount/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("$%.2fM", amount/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("$%.2fK", amount/1e3)
	}
	return FormatCurrency(amount)
}

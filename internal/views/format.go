package views

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Missing is shown in place of a value that is not available.
const Missing = "--"

// FormatINR formats an amount as rupees with Indian digit grouping,
// e.g. ₹12,34,567.50.
func FormatINR(amount decimal.Decimal) string {
	fixed := amount.Round(2).StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		fixed = fixed[1:]
		if fixed != "0.00" {
			sign = "-"
		}
	}

	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + "₹" + groupIndian(whole) + "." + frac
}

// FormatINRPtr is FormatINR for an optional amount.
func FormatINRPtr(amount *decimal.Decimal) string {
	if amount == nil {
		return Missing
	}
	return FormatINR(*amount)
}

// groupIndian inserts separators after the last three digits and then after
// every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(groups, ",") + "," + tail
}

// FormatPercent formats a percentage with two decimals and an explicit
// plus sign for gains.
func FormatPercent(pct decimal.Decimal) string {
	sign := ""
	if pct.IsPositive() {
		sign = "+"
	}
	return sign + pct.StringFixed(2) + "%"
}

// FormatDateTime formats t as "02 Jan 15:04" in local time.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return Missing
	}
	return t.Local().Format("02 Jan 15:04")
}

// FormatQuantity trims trailing zeros from a share count.
func FormatQuantity(q decimal.Decimal) string {
	return q.String()
}

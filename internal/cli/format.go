package cli

import (
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
)

// pounds formats an amount in pence as £1,234.56.
func pounds(pence int64) string {
	d := decimal.New(pence, -2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole := d.Truncate(0).String()
	frac := d.StringFixed(2)[len(whole):]
	return sign + "£" + groupThousands(whole) + frac
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	head := len(s) % 3
	if head == 0 {
		head = 3
	}
	out := s[:head]
	for i := head; i < len(s); i += 3 {
		out += "," + s[i:i+3]
	}
	return out
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

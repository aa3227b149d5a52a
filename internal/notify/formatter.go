// Package notify renders staff notifications and delivers them through the
// messaging bot, either directly or through the notification queue.
package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// ParseMode is the bot API text mode every formatted message is written for.
const ParseMode = "HTML"

const (
	currency           = "KGS"
	noComment          = "none"
	notSpecified       = "not specified"
	promotionalSuffix  = " (PROMO)"
	digestDateLayout   = "02.01.2006"
	noBirthdaysMessage = "No birthdays today."
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2) + " " + currency
}

func orEmpty(s, placeholder string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return placeholder
	}
	return html.EscapeString(s)
}

// FormatOrder renders the new-order notification. Every user supplied value is
// HTML-escaped; the comment line is always present.
func FormatOrder(s domain.OrderSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>New order #%s</b>\n\n", html.EscapeString(s.OrderID))
	fmt.Fprintf(&b, "<b>Customer:</b> %s\n", html.EscapeString(s.Name))
	fmt.Fprintf(&b, "<b>Phone:</b> %s\n", html.EscapeString(s.Phone))
	fmt.Fprintf(&b, "<b>Payment:</b> %s\n", s.PaymentMethod.Label())
	if s.HasReceipt {
		b.WriteString("Payment receipt attached\n")
	} else {
		b.WriteString("No payment receipt provided\n")
	}
	b.WriteString("\n")

	if s.DeliveryMode == domain.DeliveryDelivery {
		b.WriteString("<b>Delivery</b>\n")
		fmt.Fprintf(&b, "<b>Address:</b> %s\n", orEmpty(s.Address, notSpecified))
	} else {
		b.WriteString("<b>Pickup</b>\n")
	}
	b.WriteString("\n")

	b.WriteString("<b>Items:</b>\n")
	for _, item := range s.Items {
		name := html.EscapeString(item.Name)
		if item.Kind == domain.KindPromotional {
			name += promotionalSuffix
		}
		fmt.Fprintf(&b, "• %s - %d × %s = %s\n", name, item.Quantity, money(item.UnitPrice), money(item.Total))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "<b>Total:</b> <u>%s</u>\n\n", money(s.Total))
	fmt.Fprintf(&b, "<b>Comment:</b> %s", orEmpty(s.Comment, noComment))

	return b.String()
}

// FormatDigest renders the daily birthday digest for day. An empty match list
// still produces a message.
func FormatDigest(day time.Time, matches []domain.BirthdayMatch) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>Daily digest: %s</b>\n", day.Format(digestDateLayout))

	if len(matches) == 0 {
		b.WriteString(noBirthdaysMessage)
		return b.String()
	}

	b.WriteString("Birthdays today:\n")
	for _, m := range matches {
		c := m.Customer
		b.WriteString("\n")
		if m.Spouse {
			fmt.Fprintf(&b, "• <b>%s</b> (spouse of %s)\n", orEmpty(c.SpouseName, notSpecified), html.EscapeString(c.FullName))
			fmt.Fprintf(&b, "  Spouse phone: %s\n", orEmpty(c.SpousePhone, notSpecified))
			fmt.Fprintf(&b, "  Customer phone: %s\n", orEmpty(c.Phone, notSpecified))
		} else {
			fmt.Fprintf(&b, "• <b>%s</b>\n", html.EscapeString(c.FullName))
			fmt.Fprintf(&b, "  Phone: %s\n", orEmpty(c.Phone, notSpecified))
		}
		if c.FavoriteFlowers != "" {
			fmt.Fprintf(&b, "  Favorite flowers: %s\n", html.EscapeString(c.FavoriteFlowers))
		}
		fmt.Fprintf(&b, "  Notes: %s\n", orEmpty(c.Notes, "no notes"))
		fmt.Fprintf(&b, "  Points: %d\n", c.Points)
	}

	return strings.TrimRight(b.String(), "\n")
}

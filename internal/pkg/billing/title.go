package billing

import (
	"fmt"

	"github.com/develab/btcgate/app/models"
)

// InvoiceRef formats the human readable invoice reference, e.g. "PF00042".
func InvoiceRef(inv *models.Invoice) string {
	return fmt.Sprintf("%s%05d", inv.Serie, inv.Nr)
}

// InvoiceTitle builds the checkout description for an invoice. Single item
// invoices carry the item title; multi item invoices only the reference.
func InvoiceTitle(inv *models.Invoice) string {
	if len(inv.Items) == 1 {
		return fmt.Sprintf("Payment for invoice %s [%s]", InvoiceRef(inv), inv.Items[0].Title)
	}
	return fmt.Sprintf("Payment for invoice %s", InvoiceRef(inv))
}

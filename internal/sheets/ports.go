// Package sheets defines the spreadsheet mirror of recorded transactions.
package sheets

import (
	"context"

	"finanzas/internal/core"
)

// Header is the first row of the mirror sheet; Row.Values follows its order.
var Header = []any{"ID", "Fecha", "Usuario", "Tipo", "Categoria", "Descripcion", "Monto", "Moneda", "Metodo de pago", "Recurrente"}

// Row is one transaction as laid out in the mirror sheet.
type Row struct {
	TransactionID int64
	Date          core.Date
	Username      string
	Type          core.Kind
	Category      string
	Description   string
	Amount        core.Money
	Currency      core.Currency
	PaymentMethod core.PaymentMethod
	Recurring     bool
}

// NewRow flattens a transaction owned by username.
func NewRow(t core.Transaction, username string) Row {
	category := core.UncategorizedName
	if t.Category != nil {
		category = t.Category.Name
	}
	return Row{
		TransactionID: t.ID,
		Date:          t.Date,
		Username:      username,
		Type:          t.Type(),
		Category:      category,
		Description:   t.Description,
		Amount:        t.Amount,
		Currency:      t.Currency,
		PaymentMethod: t.PaymentMethod,
		Recurring:     t.IsRecurring,
	}
}

// Values renders the row for the Sheets API. The amount is sent as a plain
// decimal string so USER_ENTERED parses it as a number.
func (r Row) Values() []any {
	recurring := "No"
	if r.Recurring {
		recurring = "Si"
	}
	return []any{
		r.TransactionID,
		r.Date.String(),
		r.Username,
		r.Type.Label(),
		r.Category,
		r.Description,
		r.Amount.String(),
		string(r.Currency),
		r.PaymentMethod.Label(),
		recurring,
	}
}

// TransactionWriter appends mirror rows and returns a reference to the
// written range.
type TransactionWriter interface {
	AppendTransaction(ctx context.Context, row Row) (rowRef string, err error)
}

package http

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"finanzas/internal/core"
)

const (
	msgRequired      = "Este campo es obligatorio."
	msgInvalidAmount = "Introduce un monto valido."
	msgInvalidDate   = "Introduce una fecha valida."
	msgInvalidChoice = "Selecciona una opcion valida. Esa opcion no esta entre las disponibles."
)

// sanitizeInput trims s and drops control characters other than tab and
// newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func checkbox(v url.Values, field string) bool {
	switch v.Get(field) {
	case "on", "true", "1":
		return true
	}
	return false
}

func bindAmount(v url.Values, fe core.FieldErrors) core.Money {
	raw := strings.TrimSpace(v.Get("amount"))
	if raw == "" {
		fe.Add("amount", msgRequired)
		return core.Money{}
	}
	m, err := core.ParseMoney(raw)
	if err != nil {
		fe.Add("amount", msgInvalidAmount)
	}
	return m
}

func bindDate(v url.Values, field string, fe core.FieldErrors) core.Date {
	raw := strings.TrimSpace(v.Get(field))
	if raw == "" {
		fe.Add(field, msgRequired)
		return core.Date{}
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		fe.Add(field, msgInvalidDate)
	}
	return d
}

// bindCategory parses the optional category select. An empty value means
// no category.
func bindCategory(v url.Values, fe core.FieldErrors) *int64 {
	raw := strings.TrimSpace(v.Get("category"))
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		fe.Add("category", msgInvalidChoice)
		return nil
	}
	return &id
}

func bindTransaction(v url.Values) (core.Transaction, core.FieldErrors) {
	fe := core.FieldErrors{}
	t := core.Transaction{
		Description: sanitizeInput(v.Get("description")),
		Amount:      bindAmount(v, fe),
		Date:        bindDate(v, "date", fe),
		CategoryID:  bindCategory(v, fe),
		IsRecurring: checkbox(v, "is_recurring"),
	}

	if c, err := core.ParseCurrency(v.Get("currency")); err == nil {
		t.Currency = c
	} else {
		fe.Add("currency", choiceMessage(v.Get("currency")))
	}
	if p, err := core.ParsePaymentMethod(v.Get("payment_method")); err == nil {
		t.PaymentMethod = p
	} else {
		fe.Add("payment_method", choiceMessage(v.Get("payment_method")))
	}
	return t, fe
}

func bindSubscription(v url.Values) (core.Subscription, core.FieldErrors) {
	fe := core.FieldErrors{}
	sub := core.Subscription{
		Name:            sanitizeInput(v.Get("name")),
		Amount:          bindAmount(v, fe),
		NextBillingDate: bindDate(v, "next_billing_date", fe),
		CategoryID:      bindCategory(v, fe),
		Notes:           sanitizeInput(v.Get("notes")),
		AutoRenew:       checkbox(v, "auto_renew"),
		IsActive:        true,
	}
	if sub.Name == "" {
		fe.Add("name", msgRequired)
	}
	if b, err := core.ParseBillingCycle(v.Get("billing_cycle")); err == nil {
		sub.BillingCycle = b
	} else {
		fe.Add("billing_cycle", choiceMessage(v.Get("billing_cycle")))
	}
	return sub, fe
}

func bindCategoryForm(v url.Values) (core.Category, core.FieldErrors) {
	fe := core.FieldErrors{}
	c := core.Category{
		Name:  sanitizeInput(v.Get("name")),
		Color: strings.TrimSpace(v.Get("color")),
	}
	if c.Name == "" {
		fe.Add("name", msgRequired)
	}
	if k, err := core.ParseKind(v.Get("kind")); err == nil {
		c.Kind = k
	} else {
		fe.Add("kind", choiceMessage(v.Get("kind")))
	}
	return c, fe
}

func choiceMessage(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return msgRequired
	}
	return msgInvalidChoice
}

// fieldErrors extracts validation errors from a service call.
func fieldErrors(err error) (core.FieldErrors, bool) {
	var fe core.FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

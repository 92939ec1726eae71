package core

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  Kind = "INCOME"
	Expense Kind = "EXPENSE"

	PEN Currency = "PEN"
	USD Currency = "USD"

	Yape          PaymentMethod = "YAPE"
	Plin          PaymentMethod = "PLIN"
	Efectivo      PaymentMethod = "EFECTIVO"
	Tarjeta       PaymentMethod = "TARJETA"
	Transferencia PaymentMethod = "TRANSFERENCIA"
	Otro          PaymentMethod = "OTRO"

	Weekly  BillingCycle = "WEEKLY"
	Monthly BillingCycle = "MONTHLY"
	Yearly  BillingCycle = "YEARLY"
)

// Field limits mirror the column sizes of the store.
const (
	MaxCategoryNameLen     = 80
	MaxDescriptionLen      = 255
	MaxSubscriptionNameLen = 120
	MaxNotesLen            = 255
	MaxUsernameLen         = 150

	DefaultCategoryColor = "#10b981"
)

type (
	Kind          string
	Currency      string
	PaymentMethod string
	BillingCycle  string

	Date struct {
		time.Time
	}

	User struct {
		ID           int64
		Username     string
		Email        string
		FirstName    string
		LastName     string
		PasswordHash string
		CreatedAt    time.Time
	}

	Category struct {
		ID        int64
		UserID    int64
		Name      string
		Kind      Kind
		Color     string
		CreatedAt time.Time
	}

	Transaction struct {
		ID            int64
		UserID        int64
		CategoryID    *int64
		Category      *Category // resolved on reads, nil when uncategorised
		Description   string
		Amount        Money
		Currency      Currency
		PaymentMethod PaymentMethod
		Date          Date
		IsRecurring   bool
		CreatedAt     time.Time
	}

	Subscription struct {
		ID              int64
		UserID          int64
		Name            string
		Amount          Money
		BillingCycle    BillingCycle
		NextBillingDate Date
		CategoryID      *int64
		Category        *Category
		Notes           string
		IsActive        bool
		AutoRenew       bool
		CreatedAt       time.Time
	}
)

var (
	ErrInvalidKind          = errors.New("invalid category kind")
	ErrInvalidCurrency      = errors.New("invalid currency")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidBillingCycle  = errors.New("invalid billing cycle")
	ErrInvalidDate          = errors.New("invalid date")

	colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// Kinds, Currencies, PaymentMethods and BillingCycles list the accepted
// values in display order.
func Kinds() []Kind          { return []Kind{Income, Expense} }
func Currencies() []Currency { return []Currency{PEN, USD} }
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{Yape, Plin, Efectivo, Tarjeta, Transferencia, Otro}
}
func BillingCycles() []BillingCycle { return []BillingCycle{Weekly, Monthly, Yearly} }

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if k != Income && k != Expense {
		return "", ErrInvalidKind
	}
	return k, nil
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range Currencies() {
		if c == v {
			return c, nil
		}
	}
	return "", ErrInvalidCurrency
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	p := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range PaymentMethods() {
		if p == v {
			return p, nil
		}
	}
	return "", ErrInvalidPaymentMethod
}

func ParseBillingCycle(s string) (BillingCycle, error) {
	b := BillingCycle(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range BillingCycles() {
		if b == v {
			return b, nil
		}
	}
	return "", ErrInvalidBillingCycle
}

// Label returns the Spanish display name used by the templates.
func (k Kind) Label() string {
	if k == Income {
		return "Ingreso"
	}
	return "Gasto"
}

func (c Currency) Symbol() string {
	if c == USD {
		return "$"
	}
	return "S/"
}

func (p PaymentMethod) Label() string {
	switch p {
	case Efectivo:
		return "Efectivo"
	case Tarjeta:
		return "Tarjeta"
	case Transferencia:
		return "Transferencia"
	case Otro:
		return "Otro"
	case Plin:
		return "Plin"
	default:
		return "Yape"
	}
}

func (b BillingCycle) Label() string {
	switch b {
	case Weekly:
		return "Semanal"
	case Yearly:
		return "Anual"
	default:
		return "Mensual"
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses an ISO calendar date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// MonthStart returns the first day of d's month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }

// Type is the transaction's direction: the category's kind, or EXPENSE when
// the transaction has no category.
func (t Transaction) Type() Kind {
	if t.Category != nil {
		return t.Category.Kind
	}
	return Expense
}

// IsOverdue reports whether an active subscription's next billing date has
// already passed.
func (s Subscription) IsOverdue(today Date) bool {
	return s.IsActive && s.NextBillingDate.Before(today)
}

// FieldErrors maps form field names to a user-facing message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fe[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has an error.
func (fe FieldErrors) Add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

// Err returns fe as an error, or nil when empty.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

const msgRequired = "Este campo es obligatorio."

func tooLong(max int) string {
	return fmt.Sprintf("Asegurate de que tenga como maximo %d caracteres.", max)
}

func (c Category) Validate() error {
	fe := FieldErrors{}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		fe.Add("name", msgRequired)
	} else if utf8.RuneCountInString(name) > MaxCategoryNameLen {
		fe.Add("name", tooLong(MaxCategoryNameLen))
	}
	if c.Kind != Income && c.Kind != Expense {
		fe.Add("kind", "Selecciona un tipo valido.")
	}
	if !colorPattern.MatchString(c.Color) {
		fe.Add("color", "Introduce un color hexadecimal valido.")
	}
	return fe.Err()
}

func (t Transaction) Validate() error {
	fe := FieldErrors{}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLen {
		fe.Add("description", tooLong(MaxDescriptionLen))
	}
	if err := t.Amount.Validate(); err != nil {
		fe.Add("amount", "Introduce un monto valido.")
	}
	if _, err := ParseCurrency(string(t.Currency)); err != nil {
		fe.Add("currency", "Selecciona una moneda valida.")
	}
	if _, err := ParsePaymentMethod(string(t.PaymentMethod)); err != nil {
		fe.Add("payment_method", "Selecciona un metodo de pago valido.")
	}
	if t.Date.IsZero() {
		fe.Add("date", "Introduce una fecha valida.")
	}
	return fe.Err()
}

func (s Subscription) Validate() error {
	fe := FieldErrors{}
	name := strings.TrimSpace(s.Name)
	if name == "" {
		fe.Add("name", msgRequired)
	} else if utf8.RuneCountInString(name) > MaxSubscriptionNameLen {
		fe.Add("name", tooLong(MaxSubscriptionNameLen))
	}
	if err := s.Amount.Validate(); err != nil {
		fe.Add("amount", "Introduce un monto valido.")
	}
	if _, err := ParseBillingCycle(string(s.BillingCycle)); err != nil {
		fe.Add("billing_cycle", "Selecciona un ciclo valido.")
	}
	if s.NextBillingDate.IsZero() {
		fe.Add("next_billing_date", "Introduce una fecha valida.")
	}
	if utf8.RuneCountInString(s.Notes) > MaxNotesLen {
		fe.Add("notes", tooLong(MaxNotesLen))
	}
	return fe.Err()
}

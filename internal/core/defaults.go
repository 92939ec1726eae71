package core

// DefaultCategories returns the categories every user starts with. The
// returned slice is fresh on each call and has UserID unset.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Salario", Kind: Income, Color: "#22c55e"},
		{Name: "Extra", Kind: Income, Color: "#0ea5e9"},
		{Name: "Empleo", Kind: Income, Color: "#14b8a6"},
		{Name: "Freelance", Kind: Income, Color: "#06b6d4"},
		{Name: "Propinas", Kind: Income, Color: "#a855f7"},
		{Name: "Vivienda", Kind: Expense, Color: "#f97316"},
		{Name: "Comida", Kind: Expense, Color: "#f43f5e"},
		{Name: "Transporte", Kind: Expense, Color: "#6366f1"},
	}
}

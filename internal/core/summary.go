package core

import "github.com/shopspring/decimal"

// AllCategories is the filter sentinel that selects every expense.
const AllCategories = "All"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// Summary is recomputed from the full expense list on every render.
type Summary struct {
	Count      int
	Total      decimal.Decimal
	ByCategory []CategoryAmount
}

// Categories returns the filter options: the sentinel followed by every
// distinct category in first-seen order.
func Categories(items []Expense) []string {
	out := []string{AllCategories}
	seen := map[string]struct{}{}
	for _, e := range items {
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		out = append(out, e.Category)
	}
	return out
}

// HasCategory reports whether label is a valid filter selection for items.
func HasCategory(items []Expense, label string) bool {
	if label == AllCategories {
		return true
	}
	for _, e := range items {
		if e.Category == label {
			return true
		}
	}
	return false
}

// Filter returns the expenses whose category matches label exactly.
// The sentinel and the empty label select everything.
func Filter(items []Expense, label string) []Expense {
	if label == "" || label == AllCategories {
		out := make([]Expense, len(items))
		copy(out, items)
		return out
	}
	var out []Expense
	for _, e := range items {
		if e.Category == label {
			out = append(out, e)
		}
	}
	return out
}

// Total sums every amount regardless of any active filter.
func Total(items []Expense) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range items {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// ByCategory groups amounts by category, keeping first-seen order.
func ByCategory(items []Expense) []CategoryAmount {
	idx := map[string]int{}
	var out []CategoryAmount
	for _, e := range items {
		i, ok := idx[e.Category]
		if !ok {
			idx[e.Category] = len(out)
			out = append(out, CategoryAmount{Name: e.Category, Amount: e.Amount})
			continue
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	return out
}

func Summarize(items []Expense) Summary {
	return Summary{
		Count:      len(items),
		Total:      Total(items),
		ByCategory: ByCategory(items),
	}
}

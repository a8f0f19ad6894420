package cart

import "github.com/shopspring/decimal"

// Option is a priced product modifier (a size or a topping).
type Option struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type (
	Size    = Option
	Topping = Option
)

var (
	SizeSmall  = Size{ID: "S", Name: "Small (S)", Price: decimal.Zero}
	SizeMedium = Size{ID: "M", Name: "Medium (M)", Price: decimal.NewFromInt(5000)}
	SizeLarge  = Size{ID: "L", Name: "Large (L)", Price: decimal.NewFromInt(10000)}

	Sizes = []Size{SizeSmall, SizeMedium, SizeLarge}

	Toppings = []Topping{
		{ID: "pearl", Name: "Black pearl", Price: decimal.NewFromInt(5000)},
		{ID: "jelly", Name: "Fruit jelly", Price: decimal.NewFromInt(5000)},
		{ID: "pudding", Name: "Pudding", Price: decimal.NewFromInt(7000)},
		{ID: "cheese", Name: "Cheese foam", Price: decimal.NewFromInt(10000)},
	}
)

// Options is what the customer picked on the product page.
type Options struct {
	Size     Size
	Toppings []Topping
	Note     string
}

func DefaultOptions() Options { return Options{Size: SizeSmall} }

// LookupSize resolves a size id against the catalog; empty id means S.
func LookupSize(id string) (Size, bool) {
	if id == "" {
		return SizeSmall, true
	}
	for _, s := range Sizes {
		if s.ID == id {
			return s, true
		}
	}
	return Size{}, false
}

func LookupTopping(id string) (Topping, bool) {
	for _, t := range Toppings {
		if t.ID == id {
			return t, true
		}
	}
	return Topping{}, false
}

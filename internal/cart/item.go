package cart

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is the slice of a catalog record the cart needs.
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
}

// LineItem is one distinct purchasable configuration in the cart.
type LineItem struct {
	ProductID int64           `json:"id"`
	Key       string          `json:"uniqueKey"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Toppings  []string        `json:"toppings"`
	Note      string          `json:"note"`
}

// Subtotal is UnitPrice × Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Key derives the composite identity of a line: product id, size id and
// the sorted, comma-joined topping ids.
func Key(productID int64, opts Options) string {
	ids := make([]string, 0, len(opts.Toppings))
	for _, t := range opts.Toppings {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return fmt.Sprintf("%d-%s-%s", productID, opts.Size.ID, strings.Join(ids, ","))
}

// UnitPrice is base price + size surcharge + every topping surcharge.
func UnitPrice(p Product, opts Options) decimal.Decimal {
	price := p.Price.Add(opts.Size.Price)
	for _, t := range opts.Toppings {
		price = price.Add(t.Price)
	}
	return price
}

// DisplayName annotates the product name with size, toppings and note.
func DisplayName(p Product, opts Options) string {
	name := p.Name
	var details []string
	if opts.Size.ID != SizeSmall.ID {
		details = append(details, opts.Size.Name)
	}
	if len(opts.Toppings) > 0 {
		names := make([]string, 0, len(opts.Toppings))
		for _, t := range opts.Toppings {
			names = append(names, t.Name)
		}
		details = append(details, strings.Join(names, ", "))
	}
	if len(details) > 0 {
		name += " (" + strings.Join(details, " + ") + ")"
	}
	if opts.Note != "" {
		name += " [Note: " + opts.Note + "]"
	}
	return name
}

func newLineItem(p Product, qty int, opts Options) LineItem {
	toppings := make([]string, 0, len(opts.Toppings))
	for _, t := range opts.Toppings {
		toppings = append(toppings, t.Name)
	}
	return LineItem{
		ProductID: p.ID,
		Key:       Key(p.ID, opts),
		Name:      DisplayName(p, opts),
		UnitPrice: UnitPrice(p, opts),
		Image:     p.Image,
		Quantity:  qty,
		Size:      opts.Size.Name,
		Toppings:  toppings,
		Note:      opts.Note,
	}
}

// TotalItems sums quantities.
func TotalItems(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// TotalPrice sums UnitPrice × Quantity.
func TotalPrice(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

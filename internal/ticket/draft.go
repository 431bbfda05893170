package ticket

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Field names a form input.
type Field string

const (
	FieldSymbol   Field = "symbol"
	FieldQuantity Field = "quantity"
	FieldPrice    Field = "price"
)

// FieldErrors maps a form input to the message shown next to it.
type FieldErrors map[Field]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[Field(f)])
	}
	return strings.Join(parts, "; ")
}

// Draft is the order being typed into the form. It is never persisted.
type Draft struct {
	Symbol   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// ParseDraft builds a draft from raw text inputs. Inputs that are not
// numbers are reported as missing.
func ParseDraft(symbol, quantity, price string) (Draft, FieldErrors) {
	d := Draft{Symbol: symbol}
	errs := FieldErrors{}

	if q, err := decimal.NewFromString(strings.TrimSpace(quantity)); err != nil {
		errs[FieldQuantity] = "Quantity is required"
	} else {
		d.Quantity = q
	}
	if p, err := decimal.NewFromString(strings.TrimSpace(price)); err != nil {
		errs[FieldPrice] = "Price is required"
	} else {
		d.Price = p
	}

	if len(errs) == 0 {
		return d.Normalize(), nil
	}
	return d.Normalize(), errs
}

// Normalize trims and upper-cases the symbol.
func (d Draft) Normalize() Draft {
	d.Symbol = strings.ToUpper(strings.TrimSpace(d.Symbol))
	return d
}

// Total is quantity × price.
func (d Draft) Total() decimal.Decimal {
	return d.Quantity.Mul(d.Price)
}

// Validate applies the local checks: a symbol, and positive quantity and
// price. It returns nil when the draft may be sent.
func (d Draft) Validate() FieldErrors {
	d = d.Normalize()
	errs := FieldErrors{}
	if d.Symbol == "" {
		errs[FieldSymbol] = "Symbol is required"
	}
	if !d.Quantity.IsPositive() {
		errs[FieldQuantity] = "Quantity must be greater than zero"
	}
	if !d.Price.IsPositive() {
		errs[FieldPrice] = "Price must be greater than zero"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// MapServerError attaches a 400 message to the inputs it mentions. A
// structured fields map takes precedence over matching words in message.
func MapServerError(message string, fields map[string]string) FieldErrors {
	errs := FieldErrors{}
	for name, msg := range fields {
		switch strings.ToLower(name) {
		case "symbol", "stocksymbol":
			errs[FieldSymbol] = msg
		case "quantity", "qty":
			errs[FieldQuantity] = msg
		case "price":
			errs[FieldPrice] = msg
		}
	}
	if len(errs) > 0 {
		return errs
	}

	lower := strings.ToLower(message)
	if strings.Contains(lower, "quantity") {
		errs[FieldQuantity] = message
	}
	if strings.Contains(lower, "price") {
		errs[FieldPrice] = message
	}
	if strings.Contains(lower, "symbol") || strings.Contains(lower, "invalid") {
		errs[FieldSymbol] = message
	}
	return errs
}

// Package items holds the ordered draft line-item collection shared by the
// invoice-creation and re-edit flows. The store owns mutation semantics;
// rendering subscribes to change notifications instead of embedding them.
package items

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fourvoice/billing-backend/internal/domain/entity"
	"github.com/fourvoice/billing-backend/internal/domain/money"
)

// Field names accepted by Update. Values match the wire names of the row inputs.
const (
	FieldDescription = "description"
	FieldQuantity    = "quantity"
	FieldUnitPrice   = "unit_price"
)

// Store is an ordered collection of draft line items. Not safe for concurrent
// use; each editing session owns its store.
type Store struct {
	items    []*entity.LineItem
	taxRate  decimal.Decimal
	onChange func(money.Totals)
}

// NewStore creates an empty store with the given tax rate percentage
func NewStore(taxRatePercent decimal.Decimal) *Store {
	return &Store{taxRate: taxRatePercent}
}

// Subscribe registers a callback invoked with fresh totals after every
// mutation. Only one subscriber is supported; a later call replaces it.
func (s *Store) Subscribe(fn func(money.Totals)) {
	s.onChange = fn
}

// SetTaxRate updates the tax rate and recomputes totals
func (s *Store) SetTaxRate(taxRatePercent decimal.Decimal) {
	s.taxRate = taxRatePercent
	s.notify()
}

// Add appends a new item and returns its generated id. A nil initial value
// yields the defaults: empty description, quantity 1, price 0.
func (s *Store) Add(initial *entity.LineItem) string {
	row := &entity.LineItem{
		ID:       uuid.NewString(),
		Quantity: 1,
	}
	if initial != nil {
		row.Description = initial.Description
		if initial.Quantity >= 1 {
			row.Quantity = initial.Quantity
		}
		if !initial.UnitPrice.IsNegative() {
			row.UnitPrice = initial.UnitPrice
		}
	}
	row.Position = len(s.items)
	s.items = append(s.items, row)
	s.notify()
	return row.ID
}

// Update mutates one field of the identified row. Quantity clamps to at least
// 1; non-numeric prices coerce to 0. An unknown id is a no-op: the row may
// have been removed while an input event was still in flight.
func (s *Store) Update(id, field, value string) {
	row := s.find(id)
	if row == nil {
		return
	}

	switch field {
	case FieldQuantity:
		row.Quantity = parseQuantity(value)
	case FieldUnitPrice:
		price := money.ParseAmount(value)
		if price.IsNegative() {
			price = decimal.Zero
		}
		row.UnitPrice = price
	case FieldDescription:
		row.Description = value
	default:
		return
	}
	s.notify()
}

// Remove deletes the identified row. Removing the last remaining row is
// allowed; submission-level validation guards against empty drafts.
func (s *Store) Remove(id string) {
	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.reposition()
			s.notify()
			return
		}
	}
}

// BulkImport appends the given extractor candidates as new rows, preserving
// candidate order, and returns the generated ids.
func (s *Store) BulkImport(candidates []entity.ItemCandidate) []string {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, s.Add(&entity.LineItem{
			Description: c.Description,
			Quantity:    parseQuantity(strconv.FormatFloat(c.Quantity, 'f', -1, 64)),
			UnitPrice:   decimal.NewFromFloat(c.Rate),
		}))
	}
	return ids
}

// Items returns the rows in display order
func (s *Store) Items() []*entity.LineItem {
	return s.items
}

// Len returns the number of rows
func (s *Store) Len() int {
	return len(s.items)
}

// Totals computes the current totals
func (s *Store) Totals() money.Totals {
	return money.Compute(s.items, s.taxRate)
}

func (s *Store) find(id string) *entity.LineItem {
	for _, it := range s.items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func (s *Store) reposition() {
	for i, it := range s.items {
		it.Position = i
	}
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange(s.Totals())
	}
}

// parseQuantity parses free-form quantity input: fractional values truncate,
// non-numeric input coerces to 0, and the result clamps to at least 1.
func parseQuantity(value string) int64 {
	var qty int64
	if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		qty = int64(f)
	}
	if qty < 1 {
		return 1
	}
	return qty
}

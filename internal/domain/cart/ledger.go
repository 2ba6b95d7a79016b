package cart

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Ledger is an ordered list of cart lines. The zero value is an empty ledger.
// A Ledger is not safe for concurrent use.
type Ledger struct {
	lines []Line
}

// NewLedger returns a ledger holding a copy of lines. Lines with a
// non-positive quantity are dropped.
func NewLedger(lines []Line) *Ledger {
	l := &Ledger{lines: make([]Line, 0, len(lines))}
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		l.lines = append(l.lines, line)
	}
	return l
}

// Add merges line into the ledger. When a line with the same product id and
// size exists its quantity grows by line.Quantity and the stored price
// snapshot is kept; otherwise line is appended. A quantity below 1 is
// treated as 1.
func (l *Ledger) Add(line Line) {
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	if i := l.index(line.ProductID, line.SizeLabel()); i >= 0 {
		l.lines[i].Quantity += line.Quantity
		return
	}
	l.lines = append(l.lines, line)
}

// Remove deletes every line of productID regardless of size and reports
// whether anything was removed.
func (l *Ledger) Remove(productID string) bool {
	n := len(l.lines)
	l.lines = slices.DeleteFunc(l.lines, func(line Line) bool {
		return line.ProductID == productID
	})
	return len(l.lines) != n
}

// RemoveLine deletes the single (productID, size) line.
func (l *Ledger) RemoveLine(productID, size string) bool {
	i := l.index(productID, size)
	if i < 0 {
		return false
	}
	l.lines = slices.Delete(l.lines, i, i+1)
	return true
}

// UpdateQuantity sets the quantity of every line of productID. A quantity
// below 1 is equivalent to Remove.
func (l *Ledger) UpdateQuantity(productID string, quantity int) bool {
	if quantity < 1 {
		return l.Remove(productID)
	}
	changed := false
	for i := range l.lines {
		if l.lines[i].ProductID == productID {
			l.lines[i].Quantity = quantity
			changed = true
		}
	}
	return changed
}

// Clear empties the ledger.
func (l *Ledger) Clear() {
	l.lines = l.lines[:0]
}

// Total returns Σ(price × quantity).
func (l *Ledger) Total() decimal.Decimal {
	return Subtotal(l.lines)
}

// ItemCount returns Σ quantity.
func (l *Ledger) ItemCount() int {
	n := 0
	for _, line := range l.lines {
		n += line.Quantity
	}
	return n
}

// Len returns the number of distinct lines.
func (l *Ledger) Len() int {
	return len(l.lines)
}

// Lines returns a copy of the current lines.
func (l *Ledger) Lines() []Line {
	return slices.Clone(l.lines)
}

func (l *Ledger) index(productID, size string) int {
	return slices.IndexFunc(l.lines, func(line Line) bool {
		return line.ProductID == productID && line.SizeLabel() == size
	})
}

// Subtotal returns Σ(price × quantity) over lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Amount())
	}
	return sum
}

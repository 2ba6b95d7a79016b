package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the fulfilment status of an order.
type Status string

const (
	StatusPlaced         Status = "placed"
	StatusProcessing     Status = "processing"
	StatusShipped        Status = "shipped"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// statusRank orders the forward-only fulfilment pipeline.
var statusRank = map[Status]int{
	StatusPlaced:         0,
	StatusProcessing:     1,
	StatusShipped:        2,
	StatusOutForDelivery: 3,
	StatusDelivered:      4,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusCancelled
}

// CanTransitionTo reports whether an order in status s may move to next.
// Fulfilment only moves forward; cancellation is possible until shipping.
func (s Status) CanTransitionTo(next Status) bool {
	if next == StatusCancelled {
		return s == StatusPlaced || s == StatusProcessing
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	return ok && to > from
}

// PaymentMethod selects how the shopper pays.
type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "cod"
	PaymentRazorpay PaymentMethod = "razorpay"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentRazorpay
}

// PaymentStatus tracks collection of the payable amount.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// ErrNotFound is returned when an order does not exist or belongs to
// another user.
var ErrNotFound = errors.New("order not found")

// Order is the server-owned aggregate created at checkout.
type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	Amounts         Amounts
	CouponCode      string
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	GatewayOrderID  string
	GatewayPayment  string
	Status          Status
	TrackingNumber  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is one purchased line, priced at checkout time.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
}

// Amount returns Price × Quantity.
func (i OrderItem) Amount() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Amounts is the priced breakdown stored with the order.
type Amounts struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

// Address is the shipping address captured by the checkout form.
type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipcode"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

// Missing returns the names of required fields that are blank.
func (a Address) Missing() []string {
	var missing []string
	check := func(name, v string) {
		if isBlank(v) {
			missing = append(missing, name)
		}
	}
	check("firstName", a.FirstName)
	check("lastName", a.LastName)
	check("email", a.Email)
	check("street", a.Street)
	check("city", a.City)
	check("state", a.State)
	check("zipcode", a.ZipCode)
	check("phone", a.Phone)
	return missing
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context, limit int) ([]Order, error)
	Update(ctx context.Context, order *Order) error
}

package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentMethodCOD = "COD"

	PaymentUnpaid = "UNPAID"
	PaymentPaid   = "PAID"
	PaymentFailed = "PAYMENT_FAILED"
)

type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"userId"`
	CustomerName    string          `json:"customerName"`
	ShippingAddress string          `json:"shippingAddress"`
	PhoneNumber     string          `json:"phoneNumber"`
	Note            string          `json:"note,omitempty"`
	Status          Status          `json:"status"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentStatus   string          `json:"paymentStatus"`
	TransactionID   string          `json:"transactionId,omitempty"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Items           []Item          `json:"items"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	// IdempotencyKey is unique per user; empty means none was sent.
	IdempotencyKey string `json:"-"`
}

type Item struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"-"`
	ProductID    int64           `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductImage string          `json:"productImage,omitempty"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Note         string          `json:"note,omitempty"`
}

// CreateInput is the create-order request body.
type CreateInput struct {
	CustomerName    string      `json:"customerName" validate:"required"`
	ShippingAddress string      `json:"shippingAddress" validate:"required"`
	PhoneNumber     string      `json:"phoneNumber" validate:"required"`
	Note            string      `json:"note"`
	PaymentMethod   string      `json:"paymentMethod"`
	Items           []ItemInput `json:"items" validate:"required,min=1,dive"`
}

type ItemInput struct {
	ProductID int64  `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	Note      string `json:"note"`
}

// PageRequest is a zero-based page index plus page size.
type PageRequest struct {
	Page int
	Size int
}

func (p PageRequest) Offset() int { return p.Page * p.Size }

// Page mirrors the pageable response the storefront already consumes.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
	Size          int   `json:"size"`
	Number        int   `json:"number"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
	Empty         bool  `json:"empty"`
}

func NewPage[T any](content []T, req PageRequest, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:       content,
		TotalPages:    pages,
		TotalElements: total,
		Size:          req.Size,
		Number:        req.Page,
		First:         req.Page == 0,
		Last:          req.Page >= pages-1,
		Empty:         len(content) == 0,
	}
}

type MonthlyStats struct {
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total"`
}

type DashboardStats struct {
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	RevenueGrowth  float64         `json:"revenueGrowth"`
	TotalOrders    int64           `json:"totalOrders"`
	NewCustomers   int64           `json:"newCustomers"`
	MonthlyRevenue []MonthlyStats  `json:"monthlyRevenue"`
	RecentSales    []Order         `json:"recentSales"`
}

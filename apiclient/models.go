package apiclient

import (
	"time"

	"github.com/jrsteele09/dashboard-session/sessions"
)

type Shop struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Location    string `json:"location,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	IsActive    bool   `json:"is_active"`
}

type Customer struct {
	ID          int64      `json:"id,omitempty"`
	Names       string     `json:"names"`
	PhoneNumber string     `json:"phone_number"`
	Shop        int64      `json:"shop"`
	Location    string     `json:"location,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// Package is a product the shops sell, e.g. a 20L refill.
type Package struct {
	ID          int64   `json:"id,omitempty"`
	Description string  `json:"description"`
	WaterAmount float64 `json:"water_amount"`
	Price       float64 `json:"price"`
	SaleType    string  `json:"sale_type"`
}

type Refill struct {
	ID          int64      `json:"id,omitempty"`
	Customer    int64      `json:"customer"`
	Shop        int64      `json:"shop"`
	Package     int64      `json:"package"`
	Quantity    int        `json:"quantity"`
	Cost        float64    `json:"cost"`
	PaymentMode string     `json:"payment_mode"`
	IsFree      bool       `json:"is_free"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

type Sale struct {
	ID          int64      `json:"id,omitempty"`
	Customer    *int64     `json:"customer,omitempty"`
	Shop        int64      `json:"shop"`
	Package     int64      `json:"package"`
	Quantity    int        `json:"quantity"`
	Cost        float64    `json:"cost"`
	PaymentMode string     `json:"payment_mode"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

type Credit struct {
	ID        int64      `json:"id,omitempty"`
	Customer  int64      `json:"customer"`
	Shop      int64      `json:"shop"`
	MoneyPaid float64    `json:"money_paid"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

type Expense struct {
	ID          int64      `json:"id,omitempty"`
	Shop        int64      `json:"shop"`
	Description string     `json:"description"`
	Cost        float64    `json:"cost"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

type MeterReading struct {
	ID          int64   `json:"id,omitempty"`
	Shop        int64   `json:"shop"`
	Reading     float64 `json:"value"`
	ReadingType string  `json:"reading_type"`
	ReadingDate string  `json:"reading_date"` // YYYY-MM-DD
}

type StockItem struct {
	ID       int64  `json:"id,omitempty"`
	Shop     int64  `json:"shop"`
	ItemName string `json:"item_name"`
	ItemType string `json:"item_type"`
	Unit     string `json:"unit"`
}

type StockLog struct {
	ID             int64      `json:"id,omitempty"`
	StockItem      int64      `json:"stock_item"`
	Shop           int64      `json:"shop"`
	QuantityChange int        `json:"quantity_change"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// User has the same shape as the profile stored with the session.
type User = sessions.UserProfile

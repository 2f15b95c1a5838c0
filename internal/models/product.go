package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog item managed from the admin panel.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string          `json:"name" gorm:"type:varchar(100);not null" validate:"required,notblank,max=100"`
	Description string          `json:"description" gorm:"type:text;not null" validate:"required,notblank,max=2000"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null" validate:"decimalgte=0,decimallt=10000000000,decimalscale=2"`
	Category    Category        `json:"category" gorm:"type:varchar(32);index;not null" validate:"category"`
	Stock       int             `json:"stock" gorm:"not null;default:0" validate:"gte=0"`
	Featured    bool            `json:"featured" gorm:"not null;default:false"`
	Image       string          `json:"image" gorm:"type:varchar(255);not null" validate:"required"`
	ImageURL    string          `json:"image_url,omitempty" gorm:"-"`
	CreatedBy   *string         `json:"created_by" gorm:"type:varchar(36);index"`
	Creator     *Creator        `json:"creator,omitempty" gorm:"foreignKey:CreatedBy;references:ID" validate:"-"`
	CreatedAt   time.Time       `json:"created_at" gorm:"index;autoCreateTime:false"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"autoUpdateTime:false"`
}

// TableName returns the table name for the Product entity.
func (Product) TableName() string {
	return "products"
}

// Creator is the public view of the account that created a product. It is
// read from the users table and never written through a product.
type Creator struct {
	ID    string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (Creator) TableName() string {
	return "users"
}

package models

import "time"

// Client is the billing account that owns invoices and the funds ledger.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FirstName string    `gorm:"type:varchar(100)" json:"first_name"`
	LastName  string    `gorm:"type:varchar(100)" json:"last_name"`
	Email     string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"email"`
	Currency  string    `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

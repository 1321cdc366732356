package db

import (
	"time"

	"gorm.io/gorm"
)

// User is a registered storefront account. Rows are never updated in place.
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Name         string    `gorm:"type:varchar(1000)" json:"name"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// Session is the server-side half of a login; the cookie only carries a
// signed reference to ID.
type Session struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_sessions_user_id" json:"user_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index:idx_sessions_expires_at" json:"expires_at"`
}

// TableName specifies the table name for Session model
func (Session) TableName() string {
	return "sessions"
}

// Book represents a book in the catalog database
type Book struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"type:varchar(250);uniqueIndex;not null" json:"title"`
	Author      string    `gorm:"type:varchar(250);not null;index:idx_books_author" json:"author"`
	Date        time.Time `gorm:"type:date;not null" json:"date"`
	Description string    `gorm:"type:text;not null" json:"description"`
	ImagePath   string    `gorm:"type:text;not null" json:"image_path"`
	TradePrice  float64   `gorm:"not null" json:"trade_price"`
	RetailPrice float64   `gorm:"not null" json:"retail_price"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for Book model
func (Book) TableName() string {
	return "books"
}

// BeforeCreate hook to set timestamps
func (b *Book) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	return nil
}

// BeforeCreate stamps the creation time.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return nil
}

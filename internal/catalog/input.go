package catalog

import (
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bookstore/storefront/internal/db"
	"github.com/bookstore/storefront/internal/validation"
)

// DateLayout is the accepted publication date format.
const DateLayout = "2006-01-02"

const maxTitleLength = 250

// BookInput carries the raw form fields of a new book.
type BookInput struct {
	Title       string
	Author      string
	Date        string
	Description string
	TradePrice  string
	RetailPrice string
	Quantity    string
}

// Image is an uploaded cover image.
type Image struct {
	Filename string
	Content  io.Reader
}

// Validate checks every field and returns the parsed book, or a
// *validation.Error naming each field that failed.
func (in BookInput) Validate(img *Image) (*db.Book, error) {
	var v validation.Errors
	book := &db.Book{
		Title:       strings.TrimSpace(in.Title),
		Author:      strings.TrimSpace(in.Author),
		Description: strings.TrimSpace(in.Description),
	}

	if v.Required("title", book.Title) && utf8.RuneCountInString(book.Title) > maxTitleLength {
		v.Add("title", "must be at most 250 characters")
	}
	if v.Required("author", book.Author) && utf8.RuneCountInString(book.Author) > maxTitleLength {
		v.Add("author", "must be at most 250 characters")
	}
	if v.Required("date", in.Date) {
		date, err := time.Parse(DateLayout, strings.TrimSpace(in.Date))
		if err != nil {
			v.Add("date", "must be a date (YYYY-MM-DD)")
		}
		book.Date = date
	}
	v.Required("description", book.Description)
	if img == nil || img.Content == nil || strings.TrimSpace(img.Filename) == "" {
		v.Add("image", "is required")
	}
	book.TradePrice = parsePrice(&v, "trade_price", in.TradePrice)
	book.RetailPrice = parsePrice(&v, "retail_price", in.RetailPrice)
	if v.Required("quantity", in.Quantity) {
		q, err := ParseQuantity(in.Quantity)
		if err != nil {
			v.Add("quantity", "must be a non-negative whole number")
		}
		book.Quantity = q
	}

	if err := v.Err(); err != nil {
		return nil, err
	}
	return book, nil
}

func parsePrice(v *validation.Errors, field, raw string) float64 {
	if !v.Required(field, raw) {
		return 0
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		v.Add(field, "must be a non-negative number")
		return 0
	}
	return price
}

// ParseQuantity parses a stock quantity.
func ParseQuantity(raw string) (int, error) {
	q, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if q < 0 {
		return 0, strconv.ErrRange
	}
	return q, nil
}

// ParseID parses a book id from a query or form value.
func ParseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		var v validation.Errors
		v.Add("id", "must be a positive whole number")
		return 0, v.Err()
	}
	return uint(id), nil
}

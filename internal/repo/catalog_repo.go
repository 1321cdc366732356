package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookstore/storefront/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrBookNotFound is returned when a book is not found
	ErrBookNotFound = errors.New("book not found")

	// ErrBookAlreadyExists is returned when trying to create a book whose title is taken
	ErrBookAlreadyExists = errors.New("book already exists")
)

// CatalogRepository handles book catalog operations
type CatalogRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(database *db.DB, logger *zap.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:  database,
		log: logger,
	}
}

// ListBooks returns every book in insertion order.
func (r *CatalogRepository) ListBooks(ctx context.Context) ([]*db.Book, error) {
	var books []*db.Book
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&books).Error; err != nil {
		r.log.Error("Failed to list books", zap.Error(err))
		return nil, err
	}
	return books, nil
}

// GetBook retrieves a book by ID
func (r *CatalogRepository) GetBook(ctx context.Context, id uint) (*db.Book, error) {
	var book db.Book
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		r.log.Error("Failed to get book", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}

	return &book, nil
}

// TitleExists reports whether a book with exactly this title is stored.
func (r *CatalogRepository) TitleExists(ctx context.Context, title string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&db.Book{}).Where("title = ?", title).Count(&count).Error; err != nil {
		r.log.Error("Failed to check book title", zap.String("title", title), zap.Error(err))
		return false, err
	}
	return count > 0, nil
}

// CreateBook creates a new book in the catalog
func (r *CatalogRepository) CreateBook(ctx context.Context, book *db.Book) error {
	exists, err := r.TitleExists(ctx, book.Title)
	if err != nil {
		return err
	}
	if exists {
		return ErrBookAlreadyExists
	}

	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		// Lost a race with a concurrent insert of the same title.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrBookAlreadyExists
		}
		r.log.Error("Failed to create book", zap.String("title", book.Title), zap.Error(err))
		return err
	}

	r.log.Info("Book created", zap.Uint("id", book.ID), zap.String("title", book.Title))
	return nil
}

// UpdateQuantity overwrites the stock quantity of a book and returns the
// stored record. No other column is touched.
func (r *CatalogRepository) UpdateQuantity(ctx context.Context, id uint, quantity int) (*db.Book, error) {
	result := r.db.WithContext(ctx).Model(&db.Book{}).Where("id = ?", id).Updates(map[string]interface{}{
		"quantity":   quantity,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		r.log.Error("Failed to update book quantity", zap.Uint("id", id), zap.Error(result.Error))
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return nil, ErrBookNotFound
	}

	r.log.Info("Book quantity updated", zap.Uint("id", id), zap.Int("quantity", quantity))
	return r.GetBook(ctx, id)
}

// DeleteBook removes a book by ID
func (r *CatalogRepository) DeleteBook(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&db.Book{})
	if result.Error != nil {
		r.log.Error("Failed to delete book", zap.Uint("id", id), zap.Error(result.Error))
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}

	r.log.Info("Book deleted", zap.Uint("id", id))
	return nil
}

// GetStats returns catalog statistics for metrics
func (r *CatalogRepository) GetStats(ctx context.Context) (titles, units int64, err error) {
	if err := r.db.WithContext(ctx).Model(&db.Book{}).Count(&titles).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count books: %w", err)
	}

	if err := r.db.WithContext(ctx).Model(&db.Book{}).Select("COALESCE(SUM(quantity), 0)").Scan(&units).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to sum quantities: %w", err)
	}

	return titles, units, nil
}

package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bookstore/storefront/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupBooksDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Connect(filepath.Join(t.TempDir(), "books.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunBookMigrations(database))
	return database
}

func newBook(title string, quantity int) *db.Book {
	return &db.Book{
		Title:       title,
		Author:      "Test Author",
		Date:        time.Date(1965, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: "A test book",
		ImagePath:   "static/images/test.png",
		TradePrice:  10,
		RetailPrice: 20,
		Quantity:    quantity,
	}
}

func TestCreateBook(t *testing.T) {
	repo := NewCatalogRepository(setupBooksDB(t), zap.NewNop())
	ctx := context.Background()

	book := newBook("Test Book", 5)
	err := repo.CreateBook(ctx, book)
	require.NoError(t, err)
	assert.NotZero(t, book.ID)

	retrieved, err := repo.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Book", retrieved.Title)
	assert.Equal(t, "Test Author", retrieved.Author)
	assert.Equal(t, 20.0, retrieved.RetailPrice)
	assert.Equal(t, 5, retrieved.Quantity)
	assert.Equal(t, "1965-01-01", retrieved.Date.Format("2006-01-02"))
}

func TestCreateBookDuplicateTitle(t *testing.T) {
	repo := NewCatalogRepository(setupBooksDB(t), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.CreateBook(ctx, newBook("Dune", 1)))

	err := repo.CreateBook(ctx, newBook("Dune", 2))
	assert.ErrorIs(t, err, ErrBookAlreadyExists)

	books, err := repo.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestGetBookNotFound(t *testing.T) {
	repo := NewCatalogRepository(setupBooksDB(t), zap.NewNop())

	_, err := repo.GetBook(context.Background(), 42)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestUpdateQuantity(t *testing.T) {
	repo := NewCatalogRepository(setupBooksDB(t), zap.NewNop())
	ctx := context.Background()

	book := newBook("Original Title", 5)
	require.NoError(t, repo.CreateBook(ctx, book))

	updated, err := repo.UpdateQuantity(ctx, book.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Quantity)
	assert.Equal(t, "Original Title", updated.Title)
	assert.Equal(t, book.TradePrice, updated.TradePrice)
	assert.Equal(t, book.ImagePath, updated.ImagePath)

	_, err = repo.UpdateQuantity(ctx, book.ID+100, 1)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestListBooks(t *testing.T) {
	repo := NewCatalogRepository(setupBooksDB(t), zap.NewNop())
	ctx := context.Background()

	books, err := repo.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)

	for _, title := range []string{"Book 1", "Book 2", "Book 3"} {
		require.NoError(t, repo.CreateBook(ctx, newBook(title, 1)))
	}

	books, err = repo.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "Book 1", books[0].Title)
	assert.Equal(t, "Book 3", books[2].Title)
}

func TestDeleteBook(t *testing.T) {
	repo := NewCatalogRepository(setupBooksDB(t), zap.NewNop())
	ctx := context.Background()

	book := newBook("To Delete", 1)
	require.NoError(t, repo.CreateBook(ctx, book))

	require.NoError(t, repo.DeleteBook(ctx, book.ID))

	_, err := repo.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, ErrBookNotFound)

	err = repo.DeleteBook(ctx, book.ID)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestGetStats(t *testing.T) {
	repo := NewCatalogRepository(setupBooksDB(t), zap.NewNop())
	ctx := context.Background()

	titles, units, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, titles)
	assert.Zero(t, units)

	require.NoError(t, repo.CreateBook(ctx, newBook("A", 4)))
	require.NoError(t, repo.CreateBook(ctx, newBook("B", 6)))

	titles, units, err = repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), titles)
	assert.Equal(t, int64(10), units)
}

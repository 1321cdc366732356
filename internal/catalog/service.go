package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bookstore/storefront/internal/db"
	"github.com/bookstore/storefront/internal/events"
	"github.com/bookstore/storefront/internal/repo"
	"github.com/bookstore/storefront/internal/uploads"
	"github.com/bookstore/storefront/internal/validation"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateTitle is returned when a book with the same title exists
	ErrDuplicateTitle = errors.New("a book with this title already exists")

	// ErrNotFound is returned when no book has the requested id
	ErrNotFound = errors.New("book not found")
)

const publishTimeout = 10 * time.Second

// Publisher receives catalog change events.
type Publisher interface {
	PublishBookCreated(ctx context.Context, book *db.Book) error
	PublishBookUpdated(ctx context.Context, id uint, fieldsChanged []string, updates map[string]interface{}) error
	PublishBookDeleted(ctx context.Context, id uint) error
}

// ImageStore persists cover images.
type ImageStore interface {
	Save(filename string, content io.Reader) (string, error)
	Remove(path string) error
}

// Service implements the catalog operations on top of the repository.
type Service struct {
	repo      *repo.CatalogRepository
	images    ImageStore
	publisher Publisher
	log       *zap.Logger
}

// NewService creates a catalog service.
func NewService(catalogRepo *repo.CatalogRepository, images ImageStore, publisher Publisher, log *zap.Logger) *Service {
	return &Service{
		repo:      catalogRepo,
		images:    images,
		publisher: publisher,
		log:       log,
	}
}

// List returns every book.
func (s *Service) List(ctx context.Context) ([]*db.Book, error) {
	return s.repo.ListBooks(ctx)
}

// Get returns one book.
func (s *Service) Get(ctx context.Context, id uint) (*db.Book, error) {
	book, err := s.repo.GetBook(ctx, id)
	if errors.Is(err, repo.ErrBookNotFound) {
		return nil, ErrNotFound
	}
	return book, err
}

// Add validates the input, stores the image and creates the record. Either
// both the image and the record are kept, or neither is.
func (s *Service) Add(ctx context.Context, in BookInput, img *Image) (*db.Book, error) {
	book, err := in.Validate(img)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.TitleExists(ctx, book.Title)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateTitle
	}

	path, err := s.images.Save(img.Filename, img.Content)
	if err != nil {
		return nil, imageError(err)
	}
	book.ImagePath = path

	if err := s.repo.CreateBook(ctx, book); err != nil {
		if rmErr := s.images.Remove(path); rmErr != nil {
			s.log.Warn("Failed to remove orphaned image", zap.String("path", path), zap.Error(rmErr))
		}
		if errors.Is(err, repo.ErrBookAlreadyExists) {
			return nil, ErrDuplicateTitle
		}
		return nil, err
	}

	created := *book
	s.publishAsync(ctx, "created", book.ID, func(ctx context.Context) error {
		return s.publisher.PublishBookCreated(ctx, &created)
	})
	return book, nil
}

// UpdateQuantity overwrites the stock quantity of a book.
func (s *Service) UpdateQuantity(ctx context.Context, id uint, quantity int) (*db.Book, error) {
	if quantity < 0 {
		var v validation.Errors
		v.Add("quantity", "must be a non-negative whole number")
		return nil, v.Err()
	}

	book, err := s.repo.UpdateQuantity(ctx, id, quantity)
	if err != nil {
		if errors.Is(err, repo.ErrBookNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.publishAsync(ctx, "updated", id, func(ctx context.Context) error {
		return s.publisher.PublishBookUpdated(ctx, id, []string{"quantity"}, map[string]interface{}{"quantity": quantity})
	})
	return book, nil
}

// Delete removes a book. Its image file is left in place.
func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.repo.DeleteBook(ctx, id); err != nil {
		if errors.Is(err, repo.ErrBookNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.publishAsync(ctx, "deleted", id, func(ctx context.Context) error {
		return s.publisher.PublishBookDeleted(ctx, id)
	})
	return nil
}

// Stats returns the number of titles and the total stock.
func (s *Service) Stats(ctx context.Context) (titles, units int64, err error) {
	return s.repo.GetStats(ctx)
}

// publishAsync sends an event without holding up the request; failures are
// only logged.
func (s *Service) publishAsync(ctx context.Context, action string, id uint, publish func(context.Context) error) {
	corrID := events.CorrelationID(ctx)
	go func() {
		eventCtx, cancel := context.WithTimeout(events.WithCorrelationID(context.Background(), corrID), publishTimeout)
		defer cancel()

		if err := publish(eventCtx); err != nil {
			s.log.Error(fmt.Sprintf("Failed to publish book %s event", action),
				zap.Uint("id", id),
				zap.Error(err),
			)
		}
	}()
}

func imageError(err error) error {
	var v validation.Errors
	switch {
	case errors.Is(err, uploads.ErrEmpty):
		v.Add("image", "is empty")
	case errors.Is(err, uploads.ErrNotImage):
		v.Add("image", "must be an image file")
	case errors.Is(err, uploads.ErrTooLarge):
		v.Add("image", "is too large")
	default:
		return fmt.Errorf("store image: %w", err)
	}
	return v.Err()
}

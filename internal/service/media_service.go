package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fjod/bookswap/internal/blob"
	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type CoverPreview struct {
	URL       string
	ExpiresAt *time.Time
	// Degraded is set when signing failed and the stored URL was returned.
	Degraded bool
}

type MediaService struct {
	catalog  repository.CatalogRepository
	blobs    blob.Gateway
	previews *blob.PreviewCache
	now      func() time.Time
}

func NewMediaService(catalog repository.CatalogRepository, blobs blob.Gateway, previews *blob.PreviewCache) *MediaService {
	return &MediaService{
		catalog:  catalog,
		blobs:    blobs,
		previews: previews,
		now:      time.Now,
	}
}

func (s *MediaService) UploadCover(ctx context.Context, sellerID string, bookID uuid.UUID, up Upload) (*domain.Image, error) {
	if err := requireIdentity(sellerID); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(up.ContentType, "image/") {
		return nil, ErrNotAnImage
	}
	book, err := s.ownedBook(ctx, sellerID, bookID, up)
	if err != nil {
		return nil, err
	}

	obj, err := s.store(ctx, blob.NewKey("covers", bookID.String(), up.FileName), up)
	if err != nil {
		return nil, err
	}

	uploadedAt := s.now()
	cover := domain.Image{URL: obj.URL, Key: obj.Key, UploadedAt: &uploadedAt}
	if err := s.catalog.SetCover(ctx, bookID, cover); err != nil {
		s.discard(ctx, obj.Key)
		return nil, fmt.Errorf("set cover: %w", err)
	}

	if book.Cover != nil && book.Cover.HasKey() {
		s.previews.Remove(book.Cover.Key)
		s.discard(ctx, book.Cover.Key)
	}
	return &cover, nil
}

func (s *MediaService) AttachDigitalFile(ctx context.Context, sellerID string, bookID uuid.UUID, up Upload) (*domain.DigitalFile, error) {
	book, err := s.ownedBook(ctx, sellerID, bookID, up)
	if err != nil {
		return nil, err
	}

	obj, err := s.store(ctx, blob.NewKey("files", bookID.String(), up.FileName), up)
	if err != nil {
		return nil, err
	}

	file := domain.DigitalFile{
		Key:         obj.Key,
		FileName:    up.FileName,
		Size:        up.Size,
		ContentType: up.ContentType,
		UploadedAt:  s.now(),
	}
	if err := s.catalog.SetDigitalFile(ctx, bookID, file); err != nil {
		s.discard(ctx, obj.Key)
		return nil, fmt.Errorf("set digital file: %w", err)
	}

	if book.IsDigital() {
		s.discard(ctx, book.DigitalFile.Key)
	}
	return &file, nil
}

// CoverPreview signs the cover for an hour. If signing fails the stored URL
// is returned once and the response is flagged degraded.
func (s *MediaService) CoverPreview(ctx context.Context, bookID uuid.UUID) (*CoverPreview, error) {
	book, err := s.catalog.GetBook(ctx, bookID)
	if errors.Is(err, repository.ErrBookNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if book.Cover == nil {
		return nil, ErrNoCover
	}

	cover := book.Cover
	if !cover.HasKey() {
		return &CoverPreview{URL: cover.URL}, nil
	}

	if cached, ok := s.previews.Get(cover.Key); ok {
		return &CoverPreview{URL: cached.URL, ExpiresAt: &cached.ExpiresAt}, nil
	}

	signed, err := s.blobs.SignedURL(ctx, cover.Key, blob.PreviewURLExpiry)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Bool("degraded", true).
			Str("book_id", bookID.String()).
			Msg("cover signing failed, serving stored url")
		return &CoverPreview{URL: cover.URL, Degraded: true}, nil
	}

	s.previews.Add(cover.Key, signed)
	return &CoverPreview{URL: signed.URL, ExpiresAt: &signed.ExpiresAt}, nil
}

func (s *MediaService) ownedBook(ctx context.Context, sellerID string, bookID uuid.UUID, up Upload) (*domain.Book, error) {
	if err := requireIdentity(sellerID); err != nil {
		return nil, err
	}
	if up.Size <= 0 || up.Body == nil {
		return nil, ErrEmptyFile
	}

	book, err := s.catalog.GetBook(ctx, bookID)
	if errors.Is(err, repository.ErrBookNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if book.SellerID != sellerID {
		return nil, ErrNotBookOwner
	}
	return book, nil
}

func (s *MediaService) store(ctx context.Context, key string, up Upload) (blob.Object, error) {
	obj, err := s.blobs.Put(ctx, key, up.Body, up.Size, up.ContentType)
	if err != nil {
		return blob.Object{}, fmt.Errorf("%w: store upload: %v", ErrUpstream, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("key", key).
		Str("size", humanize.Bytes(uint64(up.Size))).
		Msg("upload stored")
	return obj, nil
}

func (s *MediaService) discard(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("blob delete failed")
	}
}

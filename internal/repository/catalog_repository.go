package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ CatalogRepository = (*MongoCatalog)(nil)

type MongoCatalog struct {
	collection *mongo.Collection
}

func NewMongoCatalog(db *mongo.Database) *MongoCatalog {
	return &MongoCatalog{
		collection: db.Collection("books"),
	}
}

func (m *MongoCatalog) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "seller_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (m *MongoCatalog) CreateBook(ctx context.Context, book *domain.Book) error {
	now := time.Now()
	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now

	if _, err := m.collection.InsertOne(ctx, toBookDocument(book)); err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

func (m *MongoCatalog) GetBook(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	var doc bookDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return doc.toDomain()
}

// GetBooks returns the books found. Missing ids are absent from the map.
func (m *MongoCatalog) GetBooks(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Book, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}

	cursor, err := m.collection.Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, fmt.Errorf("failed to find books: %w", err)
	}
	defer cursor.Close(ctx)

	books := make(map[uuid.UUID]*domain.Book, len(ids))
	for cursor.Next(ctx) {
		var doc bookDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode book: %w", err)
		}
		book, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		books[book.ID] = book
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}
	return books, nil
}

func (m *MongoCatalog) SetCover(ctx context.Context, id uuid.UUID, cover domain.Image) error {
	return m.set(ctx, id, bson.M{"cover": imageDocument(cover)})
}

func (m *MongoCatalog) SetDigitalFile(ctx context.Context, id uuid.UUID, file domain.DigitalFile) error {
	return m.set(ctx, id, bson.M{"digital_file": digitalFileDocument(file)})
}

func (m *MongoCatalog) UpdateRating(ctx context.Context, id uuid.UUID, summary domain.BookRatingSummary) error {
	return m.set(ctx, id, bson.M{"rating": ratingDocument(summary)})
}

func (m *MongoCatalog) set(ctx context.Context, id uuid.UUID, fields bson.M) error {
	fields["updated_at"] = time.Now()
	result, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": fields},
		options.Update().SetUpsert(false))
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrBookNotFound
	}
	return nil
}

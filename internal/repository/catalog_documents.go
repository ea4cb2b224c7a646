package repository

import (
	"fmt"
	"time"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"golang.org/x/text/currency"
)

type moneyDocument struct {
	Amount   string `bson:"amount"`
	Currency string `bson:"currency"`
}

// imageDocument decodes both legacy string covers and structured ones.
type imageDocument struct {
	URL        string     `bson:"url"`
	Key        string     `bson:"key,omitempty"`
	UploadedAt *time.Time `bson:"uploaded_at,omitempty"`
}

func (d *imageDocument) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	if s, ok := raw.StringValueOK(); ok {
		*d = imageDocument{URL: s}
		return nil
	}
	if t != bsontype.EmbeddedDocument {
		return domain.ErrInvalidImage
	}

	type plain imageDocument
	var p plain
	if err := raw.Unmarshal(&p); err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	*d = imageDocument(p)
	return nil
}

type digitalFileDocument struct {
	Key         string    `bson:"key"`
	FileName    string    `bson:"file_name"`
	Size        int64     `bson:"size"`
	ContentType string    `bson:"content_type"`
	UploadedAt  time.Time `bson:"uploaded_at"`
}

type ratingDocument struct {
	AverageRating float64 `bson:"average_rating"`
	ReviewCount   int     `bson:"review_count"`
}

type bookDocument struct {
	ID          string               `bson:"_id"`
	SellerID    string               `bson:"seller_id"`
	Title       string               `bson:"title"`
	Author      string               `bson:"author"`
	Price       moneyDocument        `bson:"price"`
	Quantity    int                  `bson:"quantity"`
	Cover       *imageDocument       `bson:"cover,omitempty"`
	DigitalFile *digitalFileDocument `bson:"digital_file,omitempty"`
	Rating      ratingDocument       `bson:"rating"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

func toBookDocument(b *domain.Book) bookDocument {
	doc := bookDocument{
		ID:       b.ID.String(),
		SellerID: b.SellerID,
		Title:    b.Title,
		Author:   b.Author,
		Price: moneyDocument{
			Amount:   b.Price.Amount.String(),
			Currency: b.Price.Currency.String(),
		},
		Quantity:  b.Quantity,
		Rating:    ratingDocument(b.Rating),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	if b.Cover != nil {
		cover := imageDocument(*b.Cover)
		doc.Cover = &cover
	}
	if b.DigitalFile != nil {
		file := digitalFileDocument(*b.DigitalFile)
		doc.DigitalFile = &file
	}
	return doc
}

func (d bookDocument) toDomain() (*domain.Book, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("book id[%s] is not valid: %w", d.ID, err)
	}
	amount, err := decimal.NewFromString(d.Price.Amount)
	if err != nil {
		return nil, fmt.Errorf("book price[%s] is not valid: %w", d.Price.Amount, err)
	}
	cur, err := currency.ParseISO(d.Price.Currency)
	if err != nil {
		return nil, fmt.Errorf("currency[%s] is not valid: %w", d.Price.Currency, err)
	}

	book := &domain.Book{
		ID:        id,
		SellerID:  d.SellerID,
		Title:     d.Title,
		Author:    d.Author,
		Price:     domain.NewMoney(amount, cur),
		Quantity:  d.Quantity,
		Rating:    domain.BookRatingSummary(d.Rating),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.Cover != nil {
		cover := domain.Image(*d.Cover)
		book.Cover = &cover
	}
	if d.DigitalFile != nil {
		file := domain.DigitalFile(*d.DigitalFile)
		book.DigitalFile = &file
	}
	return book, nil
}

package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type DigitalFile struct {
	Key         string    `json:"key"`
	FileName    string    `json:"file_name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type BookRatingSummary struct {
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`
}

// NewRatingSummary rounds the mean to one decimal. No reviews yields zero.
func NewRatingSummary(sum, count int) BookRatingSummary {
	if count == 0 {
		return BookRatingSummary{}
	}
	avg := float64(sum) / float64(count)
	return BookRatingSummary{
		AverageRating: math.Round(avg*10) / 10,
		ReviewCount:   count,
	}
}

type Book struct {
	ID          uuid.UUID         `json:"id"`
	SellerID    string            `json:"seller_id"`
	Title       string            `json:"title"`
	Author      string            `json:"author"`
	Price       Money             `json:"price"`
	Quantity    int               `json:"quantity"`
	Cover       *Image            `json:"cover,omitempty"`
	DigitalFile *DigitalFile      `json:"digital_file,omitempty"`
	Rating      BookRatingSummary `json:"rating"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (b *Book) IsDigital() bool {
	return b.DigitalFile != nil && b.DigitalFile.Key != ""
}

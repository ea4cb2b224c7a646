package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type reviewRepository struct {
	pool *pgxpool.Pool
}

func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &reviewRepository{pool: pool}
}

const reviewColumns = `id, book_id, user_id, order_id, rating, title, comment, helpful_count, created_at, updated_at`

func (r *reviewRepository) CreateReview(ctx context.Context, review *domain.Review, onRating RatingWriter) error {
	_, err := withTx(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		if err := lockBookRatings(ctx, tx, review.BookID); err != nil {
			return struct{}{}, err
		}

		now := time.Now()
		review.CreatedAt, review.UpdatedAt = now, now
		review.HelpfulCount, review.HelpfulBy = 0, []string{}
		_, err := tx.Exec(ctx,
			`INSERT INTO reviews (`+reviewColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)`,
			review.ID, review.BookID, review.UserID, review.OrderID, review.Rating,
			review.Title, review.Comment, review.CreatedAt, review.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return struct{}{}, ErrDuplicateReview
			}
			return struct{}{}, fmt.Errorf("insert review: %w", err)
		}

		return struct{}{}, recomputeRating(ctx, tx, review.BookID, onRating)
	})
	return err
}

func (r *reviewRepository) UpdateReview(ctx context.Context, id uuid.UUID, guard ReviewGuard, patch domain.ReviewPatch, onRating RatingWriter) (*domain.Review, error) {
	return withTx(ctx, r.pool, func(tx pgx.Tx) (*domain.Review, error) {
		review, err := lockReview(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if err := guard(review); err != nil {
			return nil, err
		}

		patch.Apply(review)
		review.UpdatedAt = time.Now()
		_, err = tx.Exec(ctx,
			`UPDATE reviews SET rating = $2, title = $3, comment = $4, updated_at = $5 WHERE id = $1`,
			review.ID, review.Rating, review.Title, review.Comment, review.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("update review: %w", err)
		}

		if err := recomputeRating(ctx, tx, review.BookID, onRating); err != nil {
			return nil, err
		}
		if err := loadHelpful(ctx, tx, review); err != nil {
			return nil, err
		}
		return review, nil
	})
}

func (r *reviewRepository) DeleteReview(ctx context.Context, id uuid.UUID, guard ReviewGuard, onRating RatingWriter) error {
	_, err := withTx(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		review, err := lockReview(ctx, tx, id)
		if err != nil {
			return struct{}{}, err
		}
		if err := guard(review); err != nil {
			return struct{}{}, err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id); err != nil {
			return struct{}{}, fmt.Errorf("delete review: %w", err)
		}

		return struct{}{}, recomputeRating(ctx, tx, review.BookID, onRating)
	})
	return err
}

func (r *reviewRepository) GetReview(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	review, err := scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query review: %w", err)
	}
	if err := loadHelpful(ctx, r.pool, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (r *reviewRepository) ListReviews(ctx context.Context, bookID uuid.UUID) ([]*domain.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE book_id = $1 ORDER BY helpful_count DESC, created_at DESC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]*domain.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	rows.Close()

	if err := loadHelpful(ctx, r.pool, reviews...); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *reviewRepository) MarkHelpful(ctx context.Context, id uuid.UUID, userID string, guard ReviewGuard) (*domain.Review, error) {
	return withTx(ctx, r.pool, func(tx pgx.Tx) (*domain.Review, error) {
		review, err := scanReview(tx.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("lock review: %w", err)
		}
		if err := guard(review); err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO review_helpful (review_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, userID)
		if err != nil {
			return nil, fmt.Errorf("insert helpful mark: %w", err)
		}

		err = tx.QueryRow(ctx,
			`UPDATE reviews SET helpful_count = (SELECT COUNT(*) FROM review_helpful WHERE review_id = $1)
			 WHERE id = $1 RETURNING helpful_count`, id).Scan(&review.HelpfulCount)
		if err != nil {
			return nil, fmt.Errorf("update helpful count: %w", err)
		}
		return review, nil
	})
}

// lockBookRatings serializes every rating-changing write for one book.
func lockBookRatings(ctx context.Context, tx pgx.Tx, bookID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, bookID.String()); err != nil {
		return fmt.Errorf("lock book ratings: %w", err)
	}
	return nil
}

// lockReview takes the book lock before the row lock, same order as CreateReview.
func lockReview(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Review, error) {
	var bookID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT book_id FROM reviews WHERE id = $1`, id).Scan(&bookID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query review book: %w", err)
	}

	if err := lockBookRatings(ctx, tx, bookID); err != nil {
		return nil, err
	}

	review, err := scanReview(tx.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock review: %w", err)
	}
	return review, nil
}

func recomputeRating(ctx context.Context, tx pgx.Tx, bookID uuid.UUID, onRating RatingWriter) error {
	var sum, count int
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(rating), 0), COUNT(*) FROM reviews WHERE book_id = $1`, bookID).Scan(&sum, &count)
	if err != nil {
		return fmt.Errorf("aggregate ratings: %w", err)
	}

	if onRating == nil {
		return nil
	}
	return onRating(ctx, bookID, domain.NewRatingSummary(sum, count))
}

// loadHelpful fills HelpfulBy in the order the marks were made.
func loadHelpful(ctx context.Context, q querier, reviews ...*domain.Review) error {
	if len(reviews) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Review, len(reviews))
	ids := make([]string, 0, len(reviews))
	for _, review := range reviews {
		review.HelpfulBy = []string{}
		byID[review.ID] = review
		ids = append(ids, review.ID.String())
	}

	rows, err := q.Query(ctx,
		`SELECT review_id, user_id FROM review_helpful
		 WHERE review_id = ANY($1::uuid[]) ORDER BY created_at, user_id`, ids)
	if err != nil {
		return fmt.Errorf("query helpful marks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			reviewID uuid.UUID
			userID   string
		)
		if err := rows.Scan(&reviewID, &userID); err != nil {
			return fmt.Errorf("scan helpful mark: %w", err)
		}
		if review, ok := byID[reviewID]; ok {
			review.HelpfulBy = append(review.HelpfulBy, userID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate helpful marks: %w", err)
	}
	return nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var review domain.Review
	err := row.Scan(&review.ID, &review.BookID, &review.UserID, &review.OrderID, &review.Rating,
		&review.Title, &review.Comment, &review.HelpfulCount, &review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

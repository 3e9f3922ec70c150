package store

import (
	"context"
	"errors"
	"fmt"

	"restaurant_reviews/pkg/circuitbreaker"
	"restaurant_reviews/pkg/database"
	"restaurant_reviews/pkg/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrUnavailable = errors.New("storage temporarily unavailable")
)

// RestaurantSummary is one row of the restaurant listing: the restaurant's
// columns plus its review aggregate. AvgRating is nil when it has no reviews.
type RestaurantSummary struct {
	ID            uint
	Name          string
	StreetAddress string
	Description   string
	AvgRating     *float64
	ReviewCount   int64
}

type Store struct {
	db      *gorm.DB
	breaker *circuitbreaker.CircuitBreaker
}

// New wraps db. breaker may be nil, in which case storage errors are returned
// without short-circuiting.
func New(db *gorm.DB, breaker *circuitbreaker.CircuitBreaker) *Store {
	return &Store{db: db, breaker: breaker}
}

// CountsAsFailure reports whether err says something about the health of the
// database rather than about the request.
func CountsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, models.ErrInvalidRating) &&
		!errors.Is(err, context.Canceled)
}

func (s *Store) run(fn func() error) error {
	if s.breaker == nil {
		return fn()
	}
	err := s.breaker.Execute(fn)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// ListRestaurantSummaries returns every restaurant exactly once, with the
// average rating and number of its reviews.
func (s *Store) ListRestaurantSummaries(ctx context.Context) ([]RestaurantSummary, error) {
	var rows []RestaurantSummary
	err := s.run(func() error {
		return s.db.WithContext(ctx).
			Model(&models.Restaurant{}).
			Select("restaurant.id, restaurant.name, restaurant.street_address, restaurant.description, " +
				"CAST(AVG(review.rating) AS FLOAT) AS avg_rating, COUNT(review.id) AS review_count").
			Joins("LEFT JOIN review ON review.restaurant = restaurant.id").
			Group("restaurant.id, restaurant.name, restaurant.street_address, restaurant.description").
			Order("restaurant.id").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	return rows, nil
}

func (s *Store) CreateRestaurant(ctx context.Context, restaurant *models.Restaurant) error {
	err := s.run(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(restaurant).Error
		})
	})
	if err != nil {
		return fmt.Errorf("create restaurant: %w", err)
	}
	return nil
}

func (s *Store) GetRestaurant(ctx context.Context, id uint) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	err := s.run(func() error {
		err := s.db.WithContext(ctx).Where("id = ?", id).First(&restaurant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get restaurant %d: %w", id, err)
	}
	return &restaurant, nil
}

func (s *Store) ListReviews(ctx context.Context, restaurantID uint) ([]models.Review, error) {
	var reviews []models.Review
	err := s.run(func() error {
		return s.db.WithContext(ctx).
			Where("restaurant = ?", restaurantID).
			Order("id").
			Find(&reviews).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list reviews for restaurant %d: %w", restaurantID, err)
	}
	return reviews, nil
}

// CreateReview inserts review after checking, in the same transaction, that
// the restaurant it points at exists.
func (s *Store) CreateReview(ctx context.Context, review *models.Review) error {
	if err := review.Validate(); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	err := s.run(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.Restaurant{}).Where("id = ?", review.Restaurant).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return tx.Create(review).Error
		})
	})
	if err != nil {
		return fmt.Errorf("create review for restaurant %d: %w", review.Restaurant, err)
	}
	return nil
}

// InTransaction runs fn against a Store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise. The breaker
// guards the transaction as a whole.
func (s *Store) InTransaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.run(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&Store{db: tx})
		})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.run(func() error {
		return database.Ping(ctx, s.db)
	})
}

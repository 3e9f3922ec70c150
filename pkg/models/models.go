package models

import (
	"errors"
	"fmt"
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
)

var ErrInvalidRating = errors.New("rating out of range")

type Restaurant struct {
	ID            uint     `gorm:"primaryKey"`
	Name          string   `gorm:"size:50;not null"`
	StreetAddress string   `gorm:"size:50;not null"`
	Description   string   `gorm:"size:250;not null"`
	Reviews       []Review `gorm:"foreignKey:Restaurant"`
}

func (Restaurant) TableName() string {
	return "restaurant"
}

func (r Restaurant) String() string {
	return r.Name
}

type Review struct {
	ID         uint      `gorm:"primaryKey"`
	Restaurant uint      `gorm:"not null;index"`
	UserName   string    `gorm:"size:50;not null"`
	Rating     *int      `gorm:"check:chk_review_rating,rating >= 1 AND rating <= 5"`
	ReviewText string    `gorm:"size:500;not null"`
	ReviewDate time.Time `gorm:"not null"`
}

func (Review) TableName() string {
	return "review"
}

// Validate reports whether the rating, when present, is within [MinRating, MaxRating].
func (r Review) Validate() error {
	if r.Rating == nil {
		return nil
	}
	if *r.Rating < MinRating || *r.Rating > MaxRating {
		return fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidRating, *r.Rating, MinRating, MaxRating)
	}
	return nil
}

// IntPtr is a convenience for building optional ratings.
func IntPtr(v int) *int {
	return &v
}

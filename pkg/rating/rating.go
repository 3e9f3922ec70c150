// Package rating turns review ratings into the average and star percentage
// shown next to each restaurant.
package rating

import (
	"math"

	"restaurant_reviews/pkg/models"
)

type Summary struct {
	Average      float64
	Count        int64
	StarsPercent int
}

// StarsPercent maps an average on the 0..MaxRating scale to 0..100.
// A restaurant without reviews always gets 0.
func StarsPercent(avg float64, count int64) int {
	if count <= 0 {
		return 0
	}
	percent := math.Round(avg / models.MaxRating * 100)
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return int(percent)
}

// FromAggregate builds a Summary from an AVG/COUNT row. avg is nil when the
// outer join found no reviews.
func FromAggregate(avg *float64, count int64) Summary {
	s := Summary{Count: count}
	if avg != nil && count > 0 {
		s.Average = *avg
	}
	s.StarsPercent = StarsPercent(s.Average, s.Count)
	return s
}

// Summarize averages the non-null ratings of reviews. Count is the number of
// reviews, rated or not.
func Summarize(reviews []models.Review) Summary {
	s := Summary{Count: int64(len(reviews))}

	var sum, rated int
	for _, r := range reviews {
		if r.Rating == nil {
			continue
		}
		sum += *r.Rating
		rated++
	}
	if rated > 0 {
		s.Average = float64(sum) / float64(rated)
	}
	s.StarsPercent = StarsPercent(s.Average, s.Count)
	return s
}

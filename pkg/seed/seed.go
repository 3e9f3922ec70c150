package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"restaurant_reviews/pkg/models"
	"restaurant_reviews/pkg/store"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

type Fixtures struct {
	Restaurants []RestaurantFixture `yaml:"restaurants"`
}

type RestaurantFixture struct {
	Name          string          `yaml:"name"`
	StreetAddress string          `yaml:"street_address"`
	Description   string          `yaml:"description"`
	Reviews       []ReviewFixture `yaml:"reviews"`
}

type ReviewFixture struct {
	UserName   string `yaml:"user_name"`
	Rating     *int   `yaml:"rating"`
	ReviewText string `yaml:"review_text"`
	// DaysAgo backdates review_date relative to the time of seeding.
	DaysAgo int `yaml:"days_ago"`
}

// Writer is the part of the store seeding needs.
type Writer interface {
	CreateRestaurant(ctx context.Context, restaurant *models.Restaurant) error
	CreateReview(ctx context.Context, review *models.Review) error
}

type Result struct {
	Restaurants int
	Reviews     int
}

func Default() (*Fixtures, error) {
	return Parse(defaultFixtures)
}

func Load(r io.Reader) (*Fixtures, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixtures) Validate() error {
	var errs []error
	for i, r := range f.Restaurants {
		errs = append(errs,
			checkText(fmt.Sprintf("restaurants[%d].name", i), r.Name, 50),
			checkText(fmt.Sprintf("restaurants[%d].street_address", i), r.StreetAddress, 50),
			checkText(fmt.Sprintf("restaurants[%d].description", i), r.Description, 250),
		)
		for j, rv := range r.Reviews {
			field := fmt.Sprintf("restaurants[%d].reviews[%d]", i, j)
			errs = append(errs,
				checkText(field+".user_name", rv.UserName, 50),
				checkText(field+".review_text", rv.ReviewText, 500),
			)
			if err := (models.Review{Rating: rv.Rating}).Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s.rating: %w", field, err))
			}
			if rv.DaysAgo < 0 {
				errs = append(errs, fmt.Errorf("%s.days_ago must not be negative", field))
			}
		}
	}
	return errors.Join(errs...)
}

func checkText(field, value string, max int) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%s is longer than %d characters", field, max)
	}
	return nil
}

// Apply inserts every fixture through w. It stops at the first error.
func Apply(ctx context.Context, w Writer, f *Fixtures, now time.Time) (Result, error) {
	var res Result
	for _, rf := range f.Restaurants {
		restaurant := &models.Restaurant{
			Name:          rf.Name,
			StreetAddress: rf.StreetAddress,
			Description:   rf.Description,
		}
		if err := w.CreateRestaurant(ctx, restaurant); err != nil {
			return res, fmt.Errorf("seed restaurant %q: %w", rf.Name, err)
		}
		res.Restaurants++

		for _, rv := range rf.Reviews {
			review := &models.Review{
				Restaurant: restaurant.ID,
				UserName:   rv.UserName,
				Rating:     rv.Rating,
				ReviewText: rv.ReviewText,
				ReviewDate: now.AddDate(0, 0, -rv.DaysAgo),
			}
			if err := w.CreateReview(ctx, review); err != nil {
				return res, fmt.Errorf("seed review by %q for %q: %w", rv.UserName, rf.Name, err)
			}
			res.Reviews++
		}
	}
	return res, nil
}

// ApplyInTransaction runs Apply inside one transaction, so a failure leaves
// the database as it was.
func ApplyInTransaction(ctx context.Context, s *store.Store, f *Fixtures, now time.Time) (Result, error) {
	var res Result
	err := s.InTransaction(ctx, func(tx *store.Store) error {
		var err error
		res, err = Apply(ctx, tx, f, now)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

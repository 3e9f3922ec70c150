package views

import (
	"embed"
	"fmt"
	"html/template"
	"time"

	"restaurant_reviews/pkg/models"
	"restaurant_reviews/pkg/rating"
	"restaurant_reviews/pkg/routes"
	"restaurant_reviews/pkg/store"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	IndexPage            = "index.html"
	CreateRestaurantPage = "create_restaurant.html"
	DetailsPage          = "details.html"
	ErrorPage            = "error.html"
)

// RestaurantView carries exactly what the list and detail pages print.
type RestaurantView struct {
	ID            uint
	Name          string
	StreetAddress string
	Description   string
	AvgRating     float64
	ReviewCount   int64
	StarsPercent  int
}

type ReviewView struct {
	UserName   string
	Rating     int
	HasRating  bool
	ReviewText string
	ReviewDate time.Time
}

type IndexData struct {
	Restaurants []RestaurantView
}

type DetailsData struct {
	Restaurant RestaurantView
	Reviews    []ReviewView
}

type ErrorData struct {
	Status  int
	Message string
}

func NewRestaurantView(r models.Restaurant, s rating.Summary) RestaurantView {
	return RestaurantView{
		ID:            r.ID,
		Name:          r.Name,
		StreetAddress: r.StreetAddress,
		Description:   r.Description,
		AvgRating:     s.Average,
		ReviewCount:   s.Count,
		StarsPercent:  s.StarsPercent,
	}
}

func NewSummaryView(row store.RestaurantSummary) RestaurantView {
	return NewRestaurantView(models.Restaurant{
		ID:            row.ID,
		Name:          row.Name,
		StreetAddress: row.StreetAddress,
		Description:   row.Description,
	}, rating.FromAggregate(row.AvgRating, row.ReviewCount))
}

func NewReviewViews(reviews []models.Review) []ReviewView {
	out := make([]ReviewView, len(reviews))
	for i, r := range reviews {
		out[i] = ReviewView{
			UserName:   r.UserName,
			ReviewText: r.ReviewText,
			ReviewDate: r.ReviewDate,
		}
		if r.Rating != nil {
			out[i].Rating = *r.Rating
			out[i].HasRating = true
		}
	}
	return out
}

// Templates parses the embedded page templates. production is exposed to the
// pages as {{prod}}.
func Templates(production bool) (*template.Template, error) {
	funcs := template.FuncMap{
		"urlFor": routes.Path,
		"prod":   func() bool { return production },
		"date": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
		"seq": func(n int) []int {
			s := make([]int, n)
			for i := range s {
				s[i] = i + 1
			}
			return s
		},
		"maxRating": func() int { return models.MaxRating },
	}

	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

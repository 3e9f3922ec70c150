package main

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"restaurant_reviews/pkg/logging"
	"restaurant_reviews/pkg/models"
	"restaurant_reviews/pkg/rating"
	"restaurant_reviews/pkg/routes"
	"restaurant_reviews/pkg/store"
	"restaurant_reviews/pkg/views"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type server struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

func newServer(s *store.Store, logger *zap.Logger) *server {
	return &server{store: s, logger: logger, now: time.Now}
}

func newRouter(srv *server, tmpl *template.Template) *gin.Engine {
	router := gin.New()
	router.Use(logging.RequestLogger(srv.logger), gin.Recovery())
	router.SetHTMLTemplate(tmpl)

	router.GET(routes.Pattern(routes.Index), srv.index)
	router.GET(routes.Pattern(routes.CreateRestaurant), srv.createRestaurant)
	router.POST(routes.Pattern(routes.AddRestaurant), srv.addRestaurant)
	router.GET(routes.Pattern(routes.Details), srv.details)
	router.POST(routes.Pattern(routes.AddReview), srv.addReview)
	router.GET(routes.Pattern(routes.Health), srv.healthCheck)

	router.NoRoute(func(c *gin.Context) {
		renderError(c, http.StatusNotFound, "Page not found")
	})
	return router
}

type restaurantForm struct {
	Name          string `form:"restaurant_name" binding:"required,max=50"`
	StreetAddress string `form:"street_address" binding:"required,max=50"`
	Description   string `form:"description" binding:"required,max=250"`
}

type reviewForm struct {
	UserName   string `form:"user_name" binding:"required,max=50"`
	Rating     int    `form:"rating" binding:"required,min=1,max=5"`
	ReviewText string `form:"review_text" binding:"required,max=500"`
}

func (s *server) index(c *gin.Context) {
	rows, err := s.store.ListRestaurantSummaries(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	restaurants := make([]views.RestaurantView, len(rows))
	for i, row := range rows {
		restaurants[i] = views.NewSummaryView(row)
	}
	c.HTML(http.StatusOK, views.IndexPage, views.IndexData{Restaurants: restaurants})
}

func (s *server) createRestaurant(c *gin.Context) {
	c.HTML(http.StatusOK, views.CreateRestaurantPage, nil)
}

func (s *server) addRestaurant(c *gin.Context) {
	var form restaurantForm
	if err := c.ShouldBind(&form); err != nil {
		logging.FromContext(c, s.logger).Info("Invalid restaurant form", zap.Error(err))
		renderError(c, http.StatusBadRequest, "Restaurant name, street address and description are required")
		return
	}

	restaurant := models.Restaurant{
		Name:          form.Name,
		StreetAddress: form.StreetAddress,
		Description:   form.Description,
	}
	if err := s.store.CreateRestaurant(c.Request.Context(), &restaurant); err != nil {
		s.fail(c, err)
		return
	}

	s.redirectToDetails(c, restaurant.ID)
}

func (s *server) details(c *gin.Context) {
	id, ok := restaurantID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	restaurant, err := s.store.GetRestaurant(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	reviews, err := s.store.ListReviews(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.HTML(http.StatusOK, views.DetailsPage, views.DetailsData{
		Restaurant: views.NewRestaurantView(*restaurant, rating.Summarize(reviews)),
		Reviews:    views.NewReviewViews(reviews),
	})
}

func (s *server) addReview(c *gin.Context) {
	id, ok := restaurantID(c)
	if !ok {
		return
	}

	var form reviewForm
	if err := c.ShouldBind(&form); err != nil {
		logging.FromContext(c, s.logger).Info("Invalid review form", zap.Error(err))
		renderError(c, http.StatusBadRequest, "Name, a rating from 1 to 5 and review text are required")
		return
	}

	review := models.Review{
		Restaurant: id,
		UserName:   form.UserName,
		Rating:     &form.Rating,
		ReviewText: form.ReviewText,
		ReviewDate: s.now(),
	}
	if err := s.store.CreateReview(c.Request.Context(), &review); err != nil {
		s.fail(c, err)
		return
	}

	s.redirectToDetails(c, id)
}

func (s *server) healthCheck(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database ping failed",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"details": "Database is reachable",
	})
}

func (s *server) redirectToDetails(c *gin.Context, id uint) {
	path, err := routes.Path(routes.Details, "id", id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, path)
}

// fail maps a store error onto an error page.
func (s *server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, store.ErrNotFound):
		renderError(c, http.StatusNotFound, "Restaurant not found")
	case errors.Is(err, models.ErrInvalidRating):
		renderError(c, http.StatusBadRequest, "Rating must be between 1 and 5")
	case errors.Is(err, store.ErrUnavailable):
		logging.FromContext(c, s.logger).Warn("Storage unavailable", zap.Error(err))
		renderError(c, http.StatusServiceUnavailable, "The service is temporarily unavailable, please try again shortly")
	default:
		logging.FromContext(c, s.logger).Error("Storage failure", zap.Error(err))
		renderError(c, http.StatusInternalServerError, "Something went wrong")
	}
}

func renderError(c *gin.Context, status int, message string) {
	c.HTML(status, views.ErrorPage, views.ErrorData{Status: status, Message: message})
}

// restaurantID parses the :id path segment. A malformed id cannot name a
// restaurant, so it is answered with 404.
func restaurantID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		renderError(c, http.StatusNotFound, "Restaurant not found")
		return 0, false
	}
	return uint(id), true
}

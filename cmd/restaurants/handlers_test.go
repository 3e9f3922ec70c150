package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"restaurant_reviews/pkg/circuitbreaker"
	"restaurant_reviews/pkg/database"
	"restaurant_reviews/pkg/models"
	"restaurant_reviews/pkg/store"
	"restaurant_reviews/pkg/views"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect test database")
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func setupTestRouter(t *testing.T, db *gorm.DB, breaker *circuitbreaker.CircuitBreaker) (*gin.Engine, *server) {
	gin.SetMode(gin.TestMode)
	tmpl, err := views.Templates(false)
	require.NoError(t, err)
	srv := newServer(store.New(db, breaker), zap.NewNop())
	return newRouter(srv, tmpl), srv
}

func postForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	return w
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func restaurantValues(name string) url.Values {
	return url.Values{
		"restaurant_name": {name},
		"street_address":  {"1 Main St"},
		"description":     {"Italian"},
	}
}

func reviewValues(user, rating, text string) url.Values {
	return url.Values{
		"user_name":   {user},
		"rating":      {rating},
		"review_text": {text},
	}
}

func TestIndexEmpty(t *testing.T) {
	router, _ := setupTestRouter(t, setupTestDB(t), nil)

	w := get(router, "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No restaurants exist")
}

func TestCreateRestaurantForm(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tmpl, err := views.Templates(false)
	require.NoError(t, err)
	srv := newServer(store.New(setupTestDB(t), nil), zap.NewNop())

	w := httptest.NewRecorder()
	c, engine := gin.CreateTestContext(w)
	engine.SetHTMLTemplate(tmpl)
	c.Request = httptest.NewRequest("GET", "/create", nil)

	srv.createRestaurant(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="restaurant_name"`)
}

func TestRestaurantReviewScenario(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db, nil)

	w := postForm(router, "/add", restaurantValues("Pasta Place"))
	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	assert.Equal(t, "/details/1", location)

	w = get(router, location)
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Pasta Place")
	assert.Contains(t, body, "0.0 average from 0 reviews")
	assert.Contains(t, body, "width: 0%")
	assert.Contains(t, body, "No reviews yet.")

	w = postForm(router, "/review/1", reviewValues("Ann", "4", "Good"))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/details/1", w.Header().Get("Location"))

	body = get(router, "/details/1").Body.String()
	assert.Contains(t, body, "4.0 average from 1 review<")
	assert.Contains(t, body, "width: 80%")
	assert.Contains(t, body, "Ann")

	w = postForm(router, "/review/1", reviewValues("Ben", "2", "Slow"))
	require.Equal(t, http.StatusSeeOther, w.Code)

	body = get(router, "/details/1").Body.String()
	assert.Contains(t, body, "3.0 average from 2 reviews")
	assert.Contains(t, body, "width: 60%")

	body = get(router, "/").Body.String()
	assert.Contains(t, body, "Pasta Place")
	assert.Contains(t, body, "width: 60%")
}

func TestIndexListsEveryRestaurantOnce(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db, nil)

	for _, name := range []string{"Alpha Grill", "Beta Bistro", "Gamma Cafe"} {
		require.Equal(t, http.StatusSeeOther, postForm(router, "/add", restaurantValues(name)).Code)
	}
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusSeeOther, postForm(router, "/review/1", reviewValues("Ann", "5", "Great")).Code)
	}

	body := get(router, "/").Body.String()
	for _, name := range []string{"Alpha Grill", "Beta Bistro", "Gamma Cafe"} {
		assert.Equal(t, 1, strings.Count(body, name), name)
	}
	assert.Contains(t, body, "width: 100%")
}

func TestAddRestaurantValidation(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{name: "missing name", form: url.Values{"street_address": {"1 Main St"}, "description": {"Italian"}}},
		{name: "missing address", form: url.Values{"restaurant_name": {"A"}, "description": {"Italian"}}},
		{name: "missing description", form: url.Values{"restaurant_name": {"A"}, "street_address": {"1 Main St"}}},
		{name: "name too long", form: restaurantValues(strings.Repeat("n", 51))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			router, _ := setupTestRouter(t, db, nil)

			w := postForm(router, "/add", tt.form)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var count int64
			db.Model(&models.Restaurant{}).Count(&count)
			assert.Equal(t, int64(0), count)
		})
	}
}

func TestDetailsNotFound(t *testing.T) {
	router, _ := setupTestRouter(t, setupTestDB(t), nil)

	for _, path := range []string{"/details/42", "/details/abc", "/details/0", "/details/-1"} {
		w := get(router, path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Contains(t, w.Body.String(), "Restaurant not found", path)
	}
}

func TestAddReviewUnknownRestaurant(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db, nil)

	w := postForm(router, "/review/7", reviewValues("Ann", "4", "Good"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var count int64
	db.Model(&models.Review{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestAddReviewInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{name: "rating not a number", form: reviewValues("Ann", "four", "Good")},
		{name: "rating too low", form: reviewValues("Ann", "0", "Good")},
		{name: "rating too high", form: reviewValues("Ann", "6", "Good")},
		{name: "missing user", form: url.Values{"rating": {"4"}, "review_text": {"Good"}}},
		{name: "missing text", form: url.Values{"user_name": {"Ann"}, "rating": {"4"}}},
		{name: "text too long", form: reviewValues("Ann", "4", strings.Repeat("t", 501))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			router, _ := setupTestRouter(t, db, nil)
			require.Equal(t, http.StatusSeeOther, postForm(router, "/add", restaurantValues("Pasta Place")).Code)

			w := postForm(router, "/review/1", tt.form)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var count int64
			db.Model(&models.Review{}).Count(&count)
			assert.Equal(t, int64(0), count)
		})
	}
}

func TestAddReviewSetsServerTimestamp(t *testing.T) {
	db := setupTestDB(t)
	router, srv := setupTestRouter(t, db, nil)
	fixed := time.Date(2024, 3, 14, 19, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return fixed }

	require.Equal(t, http.StatusSeeOther, postForm(router, "/add", restaurantValues("Pasta Place")).Code)
	require.Equal(t, http.StatusSeeOther, postForm(router, "/review/1", reviewValues("Ann", "3", "Fine")).Code)

	var reviews []models.Review
	require.NoError(t, db.Find(&reviews).Error)
	require.Len(t, reviews, 1)
	assert.Equal(t, uint(1), reviews[0].Restaurant)
	assert.True(t, reviews[0].ReviewDate.Equal(fixed))
	assert.Contains(t, get(router, "/details/1").Body.String(), "2024-03-14 19:00")
}

func TestAddReviewTimestampNotBeforeRequest(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db, nil)
	require.Equal(t, http.StatusSeeOther, postForm(router, "/add", restaurantValues("Pasta Place")).Code)

	before := time.Now().Add(-time.Second)
	require.Equal(t, http.StatusSeeOther, postForm(router, "/review/1", reviewValues("Ann", "5", "Great")).Code)

	var review models.Review
	require.NoError(t, db.First(&review).Error)
	assert.False(t, review.ReviewDate.Before(before))
}

func TestRedirectIgnoresForwardedHost(t *testing.T) {
	router, _ := setupTestRouter(t, setupTestDB(t), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/add", strings.NewReader(restaurantValues("Pasta Place").Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-Host", "evil.example.com")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/details/1", w.Header().Get("Location"))
}

func TestUnknownPath(t *testing.T) {
	router, _ := setupTestRouter(t, setupTestDB(t), nil)

	w := get(router, "/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Page not found")
}

func TestHealthCheck(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db, nil)

	w := get(router, "/manage/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"UP"`)

	require.NoError(t, database.Close(db))
	w = get(router, "/manage/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"DOWN"`)
}

func TestStorageFailureIsServerError(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db, nil)
	require.NoError(t, database.Drop(db))

	assert.Equal(t, http.StatusInternalServerError, get(router, "/").Code)
	assert.Equal(t, http.StatusInternalServerError, postForm(router, "/add", restaurantValues("Pasta Place")).Code)
}

func TestOpenBreakerIsServiceUnavailable(t *testing.T) {
	db := setupTestDB(t)
	breaker := circuitbreaker.New(0, time.Minute, circuitbreaker.WithFailureFilter(store.CountsAsFailure))
	router, _ := setupTestRouter(t, db, breaker)
	require.NoError(t, database.Drop(db))

	assert.Equal(t, http.StatusInternalServerError, get(router, "/").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(router, "/").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(router, "/details/1").Code)
}

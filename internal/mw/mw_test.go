package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(AuthorizationHeaderKey, "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCache(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	calls := 0

	r := gin.New()
	r.Use(FlushOnWrite(store))
	r.GET("/count", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/fail", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.Status(http.StatusInternalServerError)
	})
	r.POST("/write", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	first := serve(r, http.MethodGet, "/count", "")
	second := serve(r, http.MethodGet, "/count", "")
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)

	serve(r, http.MethodPost, "/write", "")
	third := serve(r, http.MethodGet, "/count", "")
	assert.JSONEq(t, `{"calls":2}`, third.Body.String(), "writes flush the cache")

	serve(r, http.MethodGet, "/fail", "")
	serve(r, http.MethodGet, "/fail", "")
	assert.Equal(t, 4, calls, "errors are not cached")
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(1), 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/", "").Code)
}

func TestAdminAuth(t *testing.T) {
	const secret = "test-secret"

	valid, err := IssueToken(secret, "ops", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "ops", -time.Hour)
	require.NoError(t, err)
	wrongKey, err := IssueToken("other-secret", "ops", time.Hour)
	require.NoError(t, err)
	viewer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "viewer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	r := gin.New()
	r.GET("/admin", AdminAuth(secret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(SubjectKey))
	})

	testCases := []struct {
		name     string
		token    string
		expected int
	}{
		{name: "Valid token", token: valid, expected: http.StatusOK},
		{name: "No token", expected: http.StatusUnauthorized},
		{name: "Expired", token: expired, expected: http.StatusUnauthorized},
		{name: "Wrong key", token: wrongKey, expected: http.StatusUnauthorized},
		{name: "Not an admin", token: viewer, expected: http.StatusUnauthorized},
		{name: "Garbage", token: "a.b.c", expected: http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, "/admin", tc.token)
			assert.Equal(t, tc.expected, w.Code)
			if tc.expected == http.StatusOK {
				assert.Equal(t, "ops", w.Body.String())
			}
		})
	}

	_, err = IssueToken("", "ops", time.Hour)
	assert.Error(t, err)
}

func TestAdminAuth_NoSecret(t *testing.T) {
	r := gin.New()
	r.GET("/admin", AdminAuth(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin", "").Code)
}

package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coaching-billing/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.JWT_SECRET))
	require.NoError(t, err)
	return s
}

func TestAuthMiddlewareSetsClaims(t *testing.T) {
	config.JWT_SECRET = "test-secret"
	r := gin.New()
	r.GET("/x", AuthMiddleware(), RequireRole("admin", "billing"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant": TenantID(c), "user": c.GetUint(KeyUserID), "role": c.GetString(KeyRole)})
	})

	tok := signToken(t, jwt.MapClaims{
		"user_id": 7, "email": "a@example.com", "role": "billing", "company_id": 3,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 3, body["tenant"])
	assert.EqualValues(t, 7, body["user"])
	assert.Equal(t, "billing", body["role"])
}

func TestAuthMiddlewareRejects(t *testing.T) {
	config.JWT_SECRET = "test-secret"
	r := gin.New()
	r.GET("/x", AuthMiddleware(), RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := map[string]struct {
		header string
		want   int
	}{
		"missing":    {"", http.StatusUnauthorized},
		"malformed":  {"Token abc", http.StatusUnauthorized},
		"expired":    {"Bearer " + signToken(t, jwt.MapClaims{"user_id": 1, "role": "admin", "company_id": 1, "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		"no company": {"Bearer " + signToken(t, jwt.MapClaims{"user_id": 1, "role": "admin", "exp": time.Now().Add(time.Hour).Unix()}), http.StatusUnauthorized},
		"wrong role": {"Bearer " + signToken(t, jwt.MapClaims{"user_id": 1, "role": "coach", "company_id": 1, "exp": time.Now().Add(time.Hour).Unix()}), http.StatusForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestSanitizeStripsNestedMarkup(t *testing.T) {
	r := gin.New()
	r.Use(SanitizeAndCleanInputMiddleware())
	var got map[string]interface{}
	r.POST("/x", func(c *gin.Context) {
		_ = c.ShouldBindJSON(&got)
		c.Status(http.StatusOK)
	})

	body := `{"notes":"<script>x</script>hello","inner":{"name":"<b>Full</b>"},"list":["<i>a</i>"],"n":12}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", got["notes"])
	assert.Equal(t, "Full", got["inner"].(map[string]interface{})["name"])
	assert.Equal(t, "a", got["list"].([]interface{})[0])
	assert.EqualValues(t, 12, got["n"])
}

func TestSanitizeAllowsEmptyBody(t *testing.T) {
	r := gin.New()
	r.Use(SanitizeAndCleanInputMiddleware())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", bytes.NewBufferString("{nope")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

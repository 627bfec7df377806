package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-gateway/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func adminTestRouter(sess *models.Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/admin/payments",
		func(c *gin.Context) {
			if sess != nil {
				c.Set(ctxSessionKey, sess)
			}
		},
		RequireAdmin(),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"payments": []string{}})
		})
	return router
}

func TestRequireAdminBlocksCustomers(t *testing.T) {
	router := adminTestRouter(&models.Session{
		ID:     "sess-1",
		UserID: 7,
		Role:   models.RoleCustomer,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/payments", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Admin access required")
}

func TestRequireAdminAllowsAdmins(t *testing.T) {
	router := adminTestRouter(&models.Session{
		ID:     "sess-2",
		UserID: 1,
		Role:   models.RoleAdmin,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/payments", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdminWithoutSession(t *testing.T) {
	router := adminTestRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/payments", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdminRejectsEmptyRole(t *testing.T) {
	// Sessions created before roles were stored have no role and must not
	// pass the admin gate
	router := adminTestRouter(&models.Session{ID: "sess-3", UserID: 7})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/payments", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/utils"
)

func newAuthRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationMiddleware(), AuthMiddleware(), RequireUser())
	r.Use(extra...)
	r.GET("/whoami", func(c *gin.Context) {
		ctx := c.Request.Context()
		userId, _ := utils.GetUserIdFromContext(ctx)
		locationId, _ := utils.GetLocationIdFromContext(ctx)
		token, _ := utils.GetTokenFromContext(ctx)
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		c.JSON(http.StatusOK, gin.H{"user_id": userId, "location_id": locationId, "has_token": token != "", "correlation_id": cid})
	})
	return r
}

func serve(r *gin.Engine, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newAuthRouter()
	token, err := utils.JwtGenerate(7, "clerk", 3)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	if w := serve(r, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d", w.Code)
	}
	if w := serve(r, map[string]string{"Authorization": "Token " + token}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme: %d", w.Code)
	}
	if w := serve(r, map[string]string{"Authorization": "Bearer not-a-jwt"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: %d", w.Code)
	}

	w := serve(r, map[string]string{"Authorization": "Bearer " + token, CorrelationHeader: "abc-123"})
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: %d %s", w.Code, w.Body.String())
	}
	want := `{"correlation_id":"abc-123","has_token":true,"location_id":3,"user_id":7}`
	if w.Body.String() != want {
		t.Fatalf("body = %s, want %s", w.Body.String(), want)
	}
	if got := w.Header().Get(CorrelationHeader); got != "abc-123" {
		t.Fatalf("correlation header = %q", got)
	}
}

func TestCorrelationIdIsGeneratedWhenMissing(t *testing.T) {
	r := newAuthRouter()
	token, err := utils.JwtGenerate(1, "admin", 0)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	w := serve(r, map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if got := w.Header().Get(CorrelationHeader); len(got) != 36 {
		t.Fatalf("generated correlation id = %q", got)
	}
}

func TestRequireRole(t *testing.T) {
	r := newAuthRouter(RequireRole("admin"))
	clerk, _ := utils.JwtGenerate(7, "clerk", 0)
	admin, _ := utils.JwtGenerate(1, "Admin", 0)

	if w := serve(r, map[string]string{"Authorization": "Bearer " + clerk}); w.Code != http.StatusForbidden {
		t.Fatalf("clerk: %d", w.Code)
	}
	if w := serve(r, map[string]string{"Authorization": "Bearer " + admin}); w.Code != http.StatusOK {
		t.Fatalf("admin: %d", w.Code)
	}
}

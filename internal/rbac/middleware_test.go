package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"dialer-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func serve(t *testing.T, identityRole, identityAccount string, allowed ...string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", identityAccount, identityRole)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireAccount(), RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if code := serve(t, RoleAdmin, "acc-1", RoleUser); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DeniedUnlessAllowed(t *testing.T) {
	if code := serve(t, "viewer", "acc-1", RoleUser); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAccount_Required(t *testing.T) {
	if code := serve(t, RoleUser, "", RoleUser); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

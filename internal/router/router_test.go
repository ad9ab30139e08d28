package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/scheduling-api/internal/middleware"
	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/pkg/auth"
)

type routes struct {
	method string
	path   string
}

func (r routes) RegisterRoutes(g *gin.RouterGroup) {
	g.Handle(r.method, r.path, func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func TestRouterAuthAndRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewJWTService("secret", "")
	reg := prometheus.NewRegistry()

	r := NewRouter(middleware.NewAuthMiddleware(tokens), Handlers{
		Health:       routes{http.MethodGet, "/health/live"},
		Availability: routes{http.MethodGet, "/providers/:providerId/availability"},
		Appointments: routes{http.MethodPost, "/appointments"},
		Proposals:    routes{http.MethodPost, "/slot-proposals"},
		Meetings:     routes{http.MethodPost, "/meeting-rooms/:id/start"},
	}, RouterConfig{
		RateLimit:  middleware.RateLimiterConfig{Rate: rate.Inf},
		Registerer: reg,
	})

	token := func(role model.Role) string {
		s, err := tokens.GenerateAccessToken(model.Principal{AccountID: uuid.New(), Role: role}, time.Hour)
		require.NoError(t, err)
		return "Bearer " + s
	}

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		status int
	}{
		{"health is public", http.MethodGet, "/api/v1/health/live", "", http.StatusNoContent},
		{"availability needs auth", http.MethodGet, "/api/v1/providers/x/availability", "", http.StatusUnauthorized},
		{"client books", http.MethodPost, "/api/v1/appointments", token(model.RoleClient), http.StatusNoContent},
		{"provider cannot book", http.MethodPost, "/api/v1/appointments", token(model.RoleProvider), http.StatusForbidden},
		{"provider proposes", http.MethodPost, "/api/v1/slot-proposals", token(model.RoleProvider), http.StatusNoContent},
		{"client cannot propose", http.MethodPost, "/api/v1/slot-proposals", token(model.RoleClient), http.StatusForbidden},
		{"either role joins a room", http.MethodPost, "/api/v1/meeting-rooms/x/start", token(model.RoleClient), http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			r.Engine().ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
		})
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.requestTotal.WithLabelValues(http.MethodGet, "/api/v1/health/live", "204")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.metrics.errorTotal.WithLabelValues(http.MethodPost, "/api/v1/appointments", "client")) +
		testutil.ToFloat64(r.metrics.errorTotal.WithLabelValues(http.MethodPost, "/api/v1/slot-proposals", "client")))
}

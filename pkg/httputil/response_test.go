package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduling-api/pkg/errors"
)

type warning struct {
	Code string `json:"code"`
}

func render(t *testing.T, fn func(c *gin.Context)) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func TestRespondWithWarningsOmitsEmpty(t *testing.T) {
	var none []warning
	status, out := render(t, func(c *gin.Context) {
		RespondWithWarnings(c, http.StatusCreated, gin.H{"id": "a1"}, none)
	})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "success", out["status"])
	assert.NotContains(t, out, "warnings")

	_, out = render(t, func(c *gin.Context) {
		RespondWithWarnings(c, http.StatusOK, nil, []warning{})
	})
	assert.NotContains(t, out, "warnings")
}

func TestRespondWithWarningsIncludesEntries(t *testing.T) {
	_, out := render(t, func(c *gin.Context) {
		RespondWithWarnings(c, http.StatusOK, gin.H{}, []warning{{Code: "DEPENDENCY_DEGRADED"}})
	})
	require.Len(t, out["warnings"], 1)
	assert.Equal(t, "DEPENDENCY_DEGRADED", out["warnings"].([]interface{})[0].(map[string]interface{})["code"])
}

func TestRespondWithErrorHidesInternalDetail(t *testing.T) {
	status, out := render(t, func(c *gin.Context) {
		RespondWithError(c, assert.AnError)
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL", out["code"])
	assert.Equal(t, "internal server error", out["message"])

	status, out = render(t, func(c *gin.Context) {
		RespondWithError(c, errors.SlotNoLongerAvailable(nil))
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "SLOT_NO_LONGER_AVAILABLE", out["code"])
}

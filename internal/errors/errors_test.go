package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/project-management-api/internal/authz"
)

func TestFromAuthz(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"unauthenticated", authz.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required"},
		{"tenant missing", authz.ErrTenantMissing, http.StatusBadRequest, "TENANT_MISSING", "Organization ID missing"},
		{"tenant mismatch", authz.ErrTenantMismatch, http.StatusForbidden, "TENANT_MISMATCH", "Access denied: user does not belong to this organization"},
		{"insufficient", authz.ErrInsufficientPrivilege, http.StatusForbidden, "INSUFFICIENT_PRIVILEGE", "Access denied: insufficient privileges"},
		{"foreign error", fmt.Errorf("connection reset"), http.StatusInternalServerError, "MEMBERSHIP_LOOKUP_FAILED", "Failed to resolve organization membership"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			FromAuthz(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestTooManyRequests(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	TooManyRequests(c, "")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), ErrCodeRateLimited)
}

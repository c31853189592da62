package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/auth"
	"bus_tracker/internal/gateway"
)

func TestLocationDataTimestamps(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{`"2026-03-01T08:15:00"`, time.Date(2026, 3, 1, 8, 15, 0, 0, time.UTC)},
		{`"2026-03-01T08:15:00.5Z"`, time.Date(2026, 3, 1, 8, 15, 0, 5e8, time.UTC)},
		{`"2026-03-01T13:45:00+05:30"`, time.Date(2026, 3, 1, 8, 15, 0, 0, time.UTC)},
		{`""`, time.Time{}},
	}
	for _, tt := range tests {
		var ld LocationData
		err := json.Unmarshal([]byte(`{"latitude":19.8,"longitude":75.8,"timestamp":`+tt.raw+`}`), &ld)
		require.NoError(t, err, tt.raw)
		assert.True(t, tt.want.Equal(ld.Timestamp), "%s: got %s", tt.raw, ld.Timestamp)
		require.NotNil(t, ld.Latitude)
		assert.Equal(t, 19.8, *ld.Latitude)
	}

	var ld LocationData
	assert.Error(t, json.Unmarshal([]byte(`{"timestamp":"yesterday"}`), &ld))

	ld = LocationData{}
	require.NoError(t, json.Unmarshal([]byte(`{"occupancy":"Low"}`), &ld))
	assert.Nil(t, ld.Latitude)
	assert.Nil(t, ld.Longitude)
}

func TestRespondErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: bad route", gateway.ErrInvalid), http.StatusBadRequest},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{gateway.ErrNotFound, http.StatusNotFound},
		{gateway.ErrConflict, http.StatusConflict},
		{gateway.ErrInvalidTransition, http.StatusConflict},
		{gateway.ErrNoAssignedBus, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		respondError(c, tt.err)
		assert.Equal(t, tt.code, w.Code, tt.err.Error())
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondError(c, errors.New("pq: password authentication failed"))
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

package orderapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetNextEvent(t *testing.T) {
	start := time.Date(2026, 10, 1, 19, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/order/nextEvent/gopher", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"eventId":        "ev-1",
			"eventTitle":     "Go Conference",
			"eventStartDate": start.Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop(), srv.URL)
	next, err := client.GetNextEvent(context.Background(), "gopher")
	require.NoError(t, err)
	require.Equal(t, "ev-1", next.EventID)
	require.Equal(t, "Go Conference", next.EventTitle)
	require.True(t, next.EventStartDate.Equal(start))
}

func TestGetNextEvent_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"eventId":        "",
			"eventTitle":     "",
			"eventStartDate": "",
		})
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop(), srv.URL)
	next, err := client.GetNextEvent(context.Background(), "gopher")
	require.NoError(t, err)
	require.Empty(t, next.EventID)
	require.True(t, next.EventStartDate.IsZero())
}

func TestGetNextEvent_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop(), srv.URL)
	_, err := client.GetNextEvent(context.Background(), "gopher")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 500")
}

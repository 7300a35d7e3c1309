package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "6.524400", r.URL.Query().Get("lat"))
		assert.Equal(t, "3.379200", r.URL.Query().Get("lon"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"display_name":"Broad Street, Lagos Island, Lagos"}`))
	}))
	defer srv.Close()

	addr, err := NewNominatimClient(srv.URL, "test-agent", nil).ReverseGeocode(context.Background(), 6.5244, 3.3792)
	require.NoError(t, err)
	assert.Equal(t, "Broad Street, Lagos Island, Lagos", addr)
}

func TestReverseGeocodeNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	_, err := NewNominatimClient(srv.URL, "", nil).ReverseGeocode(context.Background(), 0, 0)
	require.ErrorIs(t, err, ErrNoAddress)
}

func TestReverseGeocodeStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewNominatimClient(srv.URL, "", nil).ReverseGeocode(context.Background(), 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

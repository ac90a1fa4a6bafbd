package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, amapKey string, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(amapKey, zap.NewNop())
	c.amapURL = srv.URL
	c.nominatimURL = srv.URL
	c.nominatimLimiter = rate.NewLimiter(rate.Inf, 1)
	return c, &calls
}

func TestNominatimFormatsAndCaches(t *testing.T) {
	c, calls := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "40.712800", r.URL.Query().Get("lat"))
		assert.Equal(t, "-74.006000", r.URL.Query().Get("lon"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"display_name":"long name","address":{"house_number":"12","road":"Main St","town":"Springfield","state":"NY","country":"USA"}}`))
	})
	assert.Equal(t, "nominatim", c.Provider())

	addr, err := c.ReverseGeocode(context.Background(), 40.7128, -74.006)
	require.NoError(t, err)
	assert.Equal(t, "12 Main St, Springfield, NY, USA", addr)

	// 同一坐标命中缓存
	addr, err = c.ReverseGeocode(context.Background(), 40.71281, -74.00601)
	require.NoError(t, err)
	assert.Equal(t, "12 Main St, Springfield, NY, USA", addr)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, 1, c.CacheSize())
}

func TestNominatimFallsBackToDisplayName(t *testing.T) {
	c, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"display_name":"Somewhere at sea","address":{}}`))
	})

	addr, err := c.ReverseGeocode(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "Somewhere at sea", addr)
}

func TestNominatimErrors(t *testing.T) {
	c, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Unable to geocode"}`))
	})
	_, err := c.ReverseGeocode(context.Background(), 1, 2)
	assert.ErrorContains(t, err, "Unable to geocode")
	assert.Equal(t, 0, c.CacheSize())

	c, _ = newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err = c.ReverseGeocode(context.Background(), 1, 2)
	assert.ErrorContains(t, err, "429")
}

func TestAmap(t *testing.T) {
	c, _ := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "116.397000,39.908000", r.URL.Query().Get("location"))
		w.Write([]byte(`{"status":"1","info":"OK","infocode":"10000","regeocode":{"formatted_address":"北京市东城区东华门街道"}}`))
	})
	assert.Equal(t, "amap", c.Provider())

	addr, err := c.ReverseGeocode(context.Background(), 39.908, 116.397)
	require.NoError(t, err)
	assert.Equal(t, "北京市东城区东华门街道", addr)
}

func TestAmapEmptyResult(t *testing.T) {
	c, _ := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"1","info":"OK","infocode":"10000","regeocode":{"formatted_address":[]}}`))
	})
	_, err := c.ReverseGeocode(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrNoResult)

	c, _ = newTestClient(t, "bad", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"0","info":"INVALID_USER_KEY","infocode":"10001"}`))
	})
	_, err = c.ReverseGeocode(context.Background(), 0, 0)
	assert.ErrorContains(t, err, "INVALID_USER_KEY")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "北京", truncate("北京市", 2))
	assert.Len(t, []rune(truncate(strings.Repeat("x", 300), maxAddressLen)), maxAddressLen)
}

package maticalgos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"HistPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVendor struct {
	token     string
	rows      map[string][]map[string]interface{}
	logins    atomic.Int32
	fetches   atomic.Int32
	lastQuery atomic.Value
}

func (f *fakeVendor) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		var req loginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "user@example.com" || req.Password != "secret" {
			_ = json.NewEncoder(w).Encode(loginResponse{Status: false, Message: "invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(loginResponse{Status: true, Token: f.token})
	})
	mux.HandleFunc("/historical/data", func(w http.ResponseWriter, r *http.Request) {
		f.fetches.Add(1)
		f.lastQuery.Store(r.URL.RawQuery)
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		key := r.URL.Query().Get("symbol") + "/" + r.URL.Query().Get("date")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true,
			"data":   f.rows[key],
		})
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeVendor, email string) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", Email: email, Password: "secret", Timeout: 2 * time.Second})
}

func TestLoginAndFetch(t *testing.T) {
	f := &fakeVendor{token: "tok", rows: map[string][]map[string]interface{}{
		"nifty/2024-01-01": {
			{"date": "2024-01-01", "time": "09:15:00", "symbol": "NIFTY-I", "open": 21700.5, "high": 21710, "low": 21690, "close": 21705, "oi": 123456789, "volume": 1500},
			{"date": "2024-01-01", "time": "09:15:00", "symbol": "NIFTY", "open": 21700, "high": 21701, "low": 21699, "close": 21700, "oi": nil, "volume": nil},
		},
	}}
	c := newTestClient(t, f, "user@example.com")
	ctx := context.Background()

	require.NoError(t, c.Login(ctx))
	rows, err := c.Fetch(ctx, "NIFTY", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "NIFTY-I", rows[0]["symbol"])
	assert.Equal(t, "21700.5", rows[0]["open"])
	assert.Equal(t, "123456789", rows[0]["oi"])
	_, hasOI := rows[1]["oi"]
	assert.False(t, hasOI)
	assert.Equal(t, "date=2024-01-01&symbol=nifty", f.lastQuery.Load())
}

func TestLoginRejected(t *testing.T) {
	c := newTestClient(t, &fakeVendor{token: "tok"}, "wrong@example.com")
	err := c.Login(context.Background())

	var ce *models.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestLoginUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(Config{BaseURL: url, Timeout: time.Second}).Login(context.Background())
	var ce *models.ConnectionError
	assert.ErrorAs(t, err, &ce)
}

func TestFetchNoData(t *testing.T) {
	c := newTestClient(t, &fakeVendor{token: "tok"}, "user@example.com")
	require.NoError(t, c.Login(context.Background()))

	_, err := c.Fetch(context.Background(), "NIFTY", time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	var fe *models.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "NIFTY", fe.Instrument)
	assert.ErrorIs(t, err, models.ErrNoData)
}

func TestFetchSessionExpired(t *testing.T) {
	f := &fakeVendor{token: "tok"}
	c := newTestClient(t, f, "user@example.com")
	require.NoError(t, c.Login(context.Background()))
	f.token = "rotated"

	_, err := c.Fetch(context.Background(), "NIFTY", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}

func TestFetchWithoutLogin(t *testing.T) {
	f := &fakeVendor{token: "tok"}
	c := newTestClient(t, f, "user@example.com")

	_, err := c.Fetch(context.Background(), "NIFTY", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	var fe *models.FetchError
	assert.ErrorAs(t, err, &fe)
	assert.Zero(t, f.fetches.Load())
}

func TestFetchConcurrent(t *testing.T) {
	f := &fakeVendor{token: "tok", rows: map[string][]map[string]interface{}{
		"banknifty/2024-01-02": {{"date": "2024-01-02", "time": "09:15:00", "symbol": "BANKNIFTY", "open": "1", "high": "1", "low": "1", "close": "1", "oi": "0", "volume": "0"}},
	}}
	c := newTestClient(t, f, "user@example.com")
	require.NoError(t, c.Login(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := c.Fetch(context.Background(), "BANKNIFTY", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
			assert.NoError(t, err)
			assert.Len(t, rows, 1)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 16, f.fetches.Load())
}

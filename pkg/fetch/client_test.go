package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/Ruscigno/marketsum/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Timeout = time.Second
	cfg.Retry = retry.RetryHTTPRequest()
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = 2 * time.Millisecond
	c, err := NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestFetchPage_SendsPageAndUserAgent(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	body, err := testClient(t, srv.URL).FetchPage(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, "<html>ok</html>", body)
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Contains(t, gotQuery, "page=3")
	for _, id := range []string{"market_sum", "debt_total", "frgn_rate", "per", "pbr", "property_total"} {
		assert.Contains(t, gotQuery, "fieldIds="+id)
	}
}

func TestFetchPage_DecodesEUCKR(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String("<th>종목명</th>")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		_, _ = w.Write([]byte(encoded))
	}))
	defer srv.Close()

	body, err := testClient(t, srv.URL).FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "<th>종목명</th>", body)
}

func TestFetchPage_KeepsCookiesAcrossPages(t *testing.T) {
	var sawCookie int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err == nil {
			atomic.AddInt32(&sawCookie, 1)
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	_, err = c.FetchPage(context.Background(), 2)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&sawCookie))
}

func TestFetchPage_NonRetryableStatus(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).FetchPage(context.Background(), 7)
	require.Error(t, err)

	var ne *errors.NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 7, ne.Page)
	assert.Equal(t, http.StatusNotFound, ne.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestFetchPage_RetryExhausted(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).FetchPage(context.Background(), 2)
	require.Error(t, err)

	var ne *errors.NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 2, ne.Page)
	assert.Equal(t, http.StatusGatewayTimeout, ne.StatusCode)
	assert.EqualValues(t, 6, atomic.LoadInt32(&hits))
	assert.True(t, strings.Contains(ne.Error(), "page 2"))
}

package coreapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"topic-pulse/config"
)

func testClient(baseURL string, maxRetries int) (*Client, *[]time.Duration) {
	cfg := &config.Config{
		CoreAPIKey:     "test-key",
		CoreBaseURL:    baseURL,
		CorePageSize:   10,
		CoreMaxRetries: maxRetries,
	}
	c := NewClient(cfg, zap.NewNop())

	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

func TestSearchWorksRetriesTransientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"totalHits": 1, "results": [{"id": "42"}]}`))
	}))
	defer srv.Close()

	c, slept := testClient(srv.URL, 5)
	resp, err := c.SearchWorks(context.Background(), "year:[2020 TO 2021] AND language:en", 0, 10)
	if err != nil {
		t.Fatalf("SearchWorks: %v", err)
	}
	if calls != 4 {
		t.Errorf("erwartet 4 Versuche, bekommen %d", calls)
	}
	if resp.TotalHits != 1 || len(resp.Results) != 1 {
		t.Errorf("Antwort falsch dekodiert: %+v", resp)
	}

	// Exponentieller Backoff: 1s, 2s, 4s
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("erwartet %d Wartezeiten, bekommen %v", len(want), *slept)
	}
	for i, d := range *slept {
		if d != want[i] {
			t.Errorf("Wartezeit %d: %v, erwartet %v", i, d, want[i])
		}
	}
}

func TestSearchWorksGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL, 3)
	_, err := c.SearchWorks(context.Background(), "q", 0, 10)

	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("erwartet TransientError, bekommen %v", err)
	}
	if transient.Attempts != 3 {
		t.Errorf("erwartet 3 Versuche, bekommen %d", transient.Attempts)
	}
}

func TestSearchWorksFatalStatusAbortsImmediately(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid api key"}`))
	}))
	defer srv.Close()

	c, slept := testClient(srv.URL, 5)
	_, err := c.SearchWorks(context.Background(), "q", 0, 10)

	var fatal *FatalAPIError
	if !errors.As(err, &fatal) {
		t.Fatalf("erwartet FatalAPIError, bekommen %v", err)
	}
	if fatal.Status != http.StatusUnauthorized {
		t.Errorf("Status %d, erwartet 401", fatal.Status)
	}
	if calls != 1 {
		t.Errorf("fataler Status darf nicht wiederholt werden, %d Aufrufe", calls)
	}
	if len(*slept) != 0 {
		t.Errorf("keine Wartezeiten erwartet, bekommen %v", *slept)
	}
}

func TestSearchWorksSendsAuthAndPagination(t *testing.T) {
	var gotAuth string
	var gotBody searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Request-Body nicht dekodierbar: %v", err)
		}
		w.Write([]byte(`{"totalHits": 0, "results": []}`))
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL, 1)
	if _, err := c.SearchWorks(context.Background(), "my query", 3, 25); err != nil {
		t.Fatalf("SearchWorks: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization-Header %q", gotAuth)
	}
	if gotBody.Q != "my query" || gotBody.Limit != 25 || gotBody.Offset != 75 {
		t.Errorf("Pagination falsch: %+v", gotBody)
	}
}

func TestBuildQuery(t *testing.T) {
	got := BuildQuery(2019, 2022, "en")
	want := "year:[2019 TO 2022] AND language:en"
	if got != want {
		t.Errorf("BuildQuery = %q, erwartet %q", got, want)
	}
}

package msgraph_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/Tiliavir/hamster-panel/internal/msgraph"
)

func writeToken(t *testing.T, tok *oauth2.Token) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth", "msgraph_tokens.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAuthUsesCachedToken(t *testing.T) {
	path := writeToken(t, &oauth2.Token{AccessToken: "cached", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)})
	auth := msgraph.NewAuth("common", "client", path, nil, nil)

	tok, err := auth.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "cached" {
		t.Errorf("AccessToken = %q, want cached", tok.AccessToken)
	}
}

func TestGetCalendarViewPagesAndAuthorizes(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer cached" {
			http.Error(w, "unauthorized: "+got, http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("Prefer"); got != `outlook.timezone="Europe/Berlin"` {
			http.Error(w, "missing Prefer header", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"value":[{"id":"2","subject":"Retro"}]}`)
			return
		}
		if r.URL.Query().Get("startDateTime") != "2026-02-27T00:00:00Z" {
			http.Error(w, "bad window "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"value":[{"id":"1","subject":"Standup"}],"@odata.nextLink":"%s/me/calendarView?page=2"}`, srv.URL)
	}))
	defer srv.Close()

	path := writeToken(t, &oauth2.Token{AccessToken: "cached", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)})
	ctx := context.Background()
	httpClient, err := msgraph.NewAuth("common", "client", path, nil, nil).HTTPClient(ctx)
	if err != nil {
		t.Fatalf("HTTPClient: %v", err)
	}

	from := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	events, err := msgraph.NewClient(httpClient, srv.URL).GetCalendarView(ctx, from, from.AddDate(0, 0, 1), "Europe/Berlin")
	if err != nil {
		t.Fatalf("GetCalendarView: %v", err)
	}
	if len(events) != 2 || events[0].Subject != "Standup" || events[1].Subject != "Retro" {
		t.Errorf("events = %+v", events)
	}
}

func TestGetCalendarViewError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"throttled"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := msgraph.NewClient(srv.Client(), srv.URL).GetCalendarView(context.Background(), time.Now(), time.Now(), "")
	if err == nil {
		t.Fatal("expected error for 429")
	}
}

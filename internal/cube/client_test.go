package cube

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ziadkadry99/cube-pilot/internal/queryval"
)

func testQuery() *queryval.Query {
	return &queryval.Query{Measures: []string{"Orders.total_revenue"}}
}

func TestExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cubejs-api/v1/load" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.Count(auth, ".") != 2 {
			t.Errorf("expected a bearer JWT, got %q", auth)
		}

		var payload struct {
			Query queryval.Query `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if len(payload.Query.Measures) != 1 {
			t.Errorf("expected 1 measure in request, got %d", len(payload.Query.Measures))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"Orders.total_revenue": 1234.5},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, APISecret: "secret"})
	result, err := client.Execute(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.RowCount != 1 {
		t.Errorf("expected 1 row, got %d", result.RowCount)
	}
	if result.Rows[0]["Orders.total_revenue"] != 1234.5 {
		t.Errorf("unexpected row value: %v", result.Rows[0])
	}
}

func TestExecuteContinueWait(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			json.NewEncoder(w).Encode(map[string]any{"error": "Continue wait"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, APISecret: "secret"})
	if _, err := client.Execute(context.Background(), testQuery()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls (one wait, one result), got %d", calls)
	}
}

func TestExecuteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error": "Member 'Orders.revenu' not found"})
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, APISecret: "secret"})
	_, err := client.Execute(context.Background(), testQuery())
	if err == nil {
		t.Fatal("expected an error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", apiErr.StatusCode)
	}
	if !IsSchemaError(err) {
		t.Error("expected a schema-shaped error")
	}
}

func TestIsSchemaError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Member 'Orders.x' not found"), true},
		{errors.New("dimension does not exist"), true},
		{errors.New("Cannot find cube 'Order'"), true},
		{errors.New("connection refused"), false},
		{errors.New("timeout exceeded"), false},
	}
	for _, tc := range cases {
		if got := IsSchemaError(tc.err); got != tc.want {
			t.Errorf("IsSchemaError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

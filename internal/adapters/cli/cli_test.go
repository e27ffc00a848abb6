package cli_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"efakture/internal/adapters/cli"
)

const scenarioDraft = `{
  "number": "F-1",
  "issue_date": "2025-02-01",
  "currency": "RSD",
  "status": "paid",
  "recipient_pib": "987654321",
  "items": [
    {"product_id": 1, "qty": "2", "unit_price": "100", "tax_rate": 20},
    {"product_id": 2, "qty": 1, "unit_price": 50, "tax_rate": 0}
  ]
}`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTotals(t *testing.T) {
	out, err := run(t, scenarioDraft, "totals")
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	for _, want := range []string{"250.00", "40.00", "290.00", "120.00", "240.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}

	out, err = run(t, scenarioDraft, "totals", "--json")
	if err != nil {
		t.Fatalf("totals --json: %v", err)
	}
	var got struct {
		Exclusive string `json:"exclusive_total"`
		Tax       string `json:"tax_total"`
		Inclusive string `json:"inclusive_total"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if got.Exclusive != "250.00" || got.Tax != "40.00" || got.Inclusive != "290.00" {
		t.Errorf("unexpected totals %+v", got)
	}
}

func TestTotals_InvalidJSON(t *testing.T) {
	if _, err := run(t, "{not json", "totals"); err == nil {
		t.Error("expected an error for invalid JSON")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    string
	}{
		{"company may not mark paid", []string{"validate", "--as", "company"}, true, "status"},
		{"admin may", []string{"validate", "--as", "admin"}, false, "Draft is valid."},
		{"unknown role", []string{"validate", "--as", "guest"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, scenarioDraft, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output does not contain %q:\n%s", tt.want, out)
			}
		})
	}
}

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "eg_token", Value: "tok"})
		writeJSON(w, map[string]any{"user": map[string]any{
			"id": 1, "name": "Acme", "email": "acme@example.com", "role": "company", "pib": "123456789", "verified": true,
		}})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"user": map[string]any{
			"id": 1, "name": "Acme", "email": "acme@example.com", "role": "company", "pib": "123456789", "verified": true,
		}})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]bool{"success": true})
	})
	mux.HandleFunc("GET /api/products", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"items": []map[string]any{{"id": 1, "name": "Cement", "code": "C-1"}}})
	})
	mux.HandleFunc("GET /api/invoices", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"outbound": []map[string]any{
				{"id": 1, "number": "F-1", "status": "sent", "currency": "RSD", "total_amount": 100},
				{"id": 3, "number": "F-3", "status": "paid", "currency": "RSD", "total_amount": 70},
			},
			"inbound": []map[string]any{{"id": 2, "number": "U-2", "status": "sent", "currency": "EUR", "total_amount": "30"}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteCommands(t *testing.T) {
	srv := fakeBackend(t)
	t.Setenv("BACKEND_URL", srv.URL)
	t.Setenv("EFAKTURE_EMAIL", "acme@example.com")
	t.Setenv("EFAKTURE_PASSWORD", "secret")

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"dashboard", []string{"dashboard"}, []string{"Issued invoices", "100.00 RSD", "30.00 EUR"}},
		{"outbound list", []string{"invoices", "list"}, []string{"F-1", "F-3"}},
		{"inbound list", []string{"invoices", "list", "--direction", "inbound"}, []string{"U-2", "30.00 EUR"}},
		{"products", []string{"products", "list"}, []string{"C-1", "Cement"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "", tt.args...)
			if err != nil {
				t.Fatalf("%v: %v", tt.args, err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output does not contain %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestRemoteCommands_NeedCredentials(t *testing.T) {
	t.Setenv("EFAKTURE_EMAIL", "")
	t.Setenv("EFAKTURE_PASSWORD", "")
	if _, err := run(t, "", "dashboard"); err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Errorf("expected credentials error, got %v", err)
	}
}

package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateDocAndConnectDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/createDocAndConnect" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(CreateDocResult{DocID: 5, Name: "doc", IP: "h", Port: "9001"})
	}))
	defer srv.Close()

	c := NewMasterClient(srv.URL, 0)
	result, err := c.CreateDocAndConnect(context.Background(), "doc")
	if err != nil {
		t.Fatal(err)
	}
	if result.DocID != 5 || result.Port != "9001" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDocListPropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "no servers online"})
	}))
	defer srv.Close()

	c := NewMasterClient(srv.URL, 0)
	if _, err := c.DocList(context.Background()); err == nil {
		t.Fatal("expected error from 503 response")
	}
}

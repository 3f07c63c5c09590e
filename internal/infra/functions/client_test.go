package functions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nutrigen/nutrigen/internal/domain"
)

func TestInvoke_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/functions/v1/generate-meal-plan" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}

		var payload domain.InvocationPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.UserID != "user-1" {
			t.Errorf("user_id = %q", payload.UserID)
		}
		if payload.Language != "he" {
			t.Errorf("language = %q", payload.Language)
		}

		w.Write([]byte(`{"success":true,"data":{"days":7}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-token")
	result, err := c.Invoke(context.Background(), "generate-meal-plan", domain.InvocationPayload{
		UserID:   "user-1",
		Language: "he",
	})
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if string(result) != `{"days":7}` {
		t.Errorf("result = %s", result)
	}
}

func TestInvoke_ImageURLResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"imageUrl":"https://cdn.example.com/meal.png"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	result, err := c.Invoke(context.Background(), "generate-meal-image", domain.InvocationPayload{UserID: "u"})
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}

	var out map[string]string
	if err := json.Unmarshal(result, &out); err != nil {
		t.Fatal(err)
	}
	if out["imageUrl"] != "https://cdn.example.com/meal.png" {
		t.Errorf("imageUrl = %q", out["imageUrl"])
	}
}

func TestInvoke_RemoteLogicError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"model overloaded"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Invoke(context.Background(), "generate-ai-snack", domain.InvocationPayload{UserID: "u"})

	var ie *domain.InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *InvocationError", err)
	}
	if ie.Kind != domain.InvocationRemote {
		t.Errorf("kind = %q, want remote", ie.Kind)
	}
	if ie.Message != "model overloaded" {
		t.Errorf("message = %q", ie.Message)
	}
}

func TestInvoke_RemoteLogicError_MessageFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"try again later"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Invoke(context.Background(), "exchange-meal", domain.InvocationPayload{UserID: "u"})

	var ie *domain.InvocationError
	if !errors.As(err, &ie) {
		t.Fatal("expected *InvocationError")
	}
	if ie.Message != "try again later" {
		t.Errorf("message = %q, want fallback to message field", ie.Message)
	}
}

func TestInvoke_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Invoke(context.Background(), "analyze-food-image", domain.InvocationPayload{UserID: "u"})

	var ie *domain.InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *InvocationError", err)
	}
	if ie.Kind != domain.InvocationTransport {
		t.Errorf("kind = %q, want transport", ie.Kind)
	}
}

func TestInvoke_NetworkError(t *testing.T) {
	// Server closed before the call — connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, "")
	_, err := c.Invoke(context.Background(), "generate-meal-plan", domain.InvocationPayload{UserID: "u"})

	var ie *domain.InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *InvocationError", err)
	}
	if ie.Kind != domain.InvocationTransport {
		t.Errorf("kind = %q, want transport", ie.Kind)
	}
	if ie.Unwrap() == nil {
		t.Error("transport error should carry the network cause")
	}
}

func TestInvoke_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Invoke(context.Background(), "generate-meal-plan", domain.InvocationPayload{UserID: "u"})

	var ie *domain.InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *InvocationError", err)
	}
	if ie.Kind != domain.InvocationTransport {
		t.Errorf("kind = %q, want transport", ie.Kind)
	}
}

package twiliorest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendMessagePostsForm(t *testing.T) {
	var gotPath, gotTo, gotBody, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		_ = r.ParseForm()
		gotTo = r.FormValue("To")
		gotBody = r.FormValue("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := New("AC123", "token", srv.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.SetBaseURL(srv.URL)

	if err := c.SendMessage(context.Background(), "+15550001111", "+15552223333", "on our way"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUser != "AC123" {
		t.Errorf("basic auth user = %q", gotUser)
	}
	if gotTo != "+15550001111" || gotBody != "on our way" {
		t.Errorf("form To=%q Body=%q", gotTo, gotBody)
	}
}

func TestSayAndHangupEscapesTwiML(t *testing.T) {
	var gotTwiml string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotTwiml = r.FormValue("Twiml")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := New("AC123", "token", srv.Client())
	c.SetBaseURL(srv.URL)

	if err := c.SayAndHangup(context.Background(), "CA1", "Sorry & goodbye"); err != nil {
		t.Fatalf("SayAndHangup: %v", err)
	}
	if !strings.Contains(gotTwiml, "Sorry &amp; goodbye") {
		t.Errorf("twiml = %q, want escaped ampersand", gotTwiml)
	}
	if !strings.Contains(gotTwiml, "<Hangup/>") {
		t.Errorf("twiml = %q, want hangup", gotTwiml)
	}
}

func TestErrorStatusSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := New("AC123", "token", srv.Client())
	c.SetBaseURL(srv.URL)

	err := c.SendMessage(context.Background(), "+15550001111", "+15552223333", "hi")
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Errorf("err = %v, want status 400 mention", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New("", "token", nil); err == nil {
		t.Error("expected error for missing account sid")
	}
	if _, err := New("AC123", "", nil); err == nil {
		t.Error("expected error for missing auth token")
	}
}

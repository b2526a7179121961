package classify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soundlabml/genremic/internal/audio"
)

func TestSubmit_SendsMultipartFields(t *testing.T) {
	var gotRate string
	var gotFilename string
	var gotContentType string
	var gotData []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("Failed to parse multipart form: %v", err)
		}
		gotRate = r.FormValue("sample_rate")

		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("Missing audio field: %v", err)
		}
		defer file.Close()
		gotFilename = header.Filename
		gotContentType = header.Header.Get("Content-Type")
		gotData, _ = io.ReadAll(file)

		w.Write([]byte(`{"status":"200","message":"jazz"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	blob := &audio.Blob{Data: []byte("opus frames"), MIME: audio.MIMEWebM}

	if err := c.Submit(context.Background(), blob, 48000); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if gotRate != "48000" {
		t.Errorf("Expected sample_rate 48000, got %s", gotRate)
	}
	if gotFilename != "recording.webm" {
		t.Errorf("Expected filename recording.webm, got %s", gotFilename)
	}
	if gotContentType != audio.MIMEWebM {
		t.Errorf("Expected content type %s, got %s", audio.MIMEWebM, gotContentType)
	}
	if string(gotData) != "opus frames" {
		t.Errorf("Audio bytes were altered in transit: %q", gotData)
	}
}

func TestSubmit_DefaultsSampleRate(t *testing.T) {
	var gotRate string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("Failed to parse multipart form: %v", err)
		}
		gotRate = r.FormValue("sample_rate")
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	blob := &audio.Blob{Data: []byte("x"), MIME: audio.MIMEWebM}

	if err := c.Submit(context.Background(), blob, 0); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if gotRate != "44100" {
		t.Errorf("Expected default sample_rate 44100, got %s", gotRate)
	}
}

func TestSubmit_ServerErrorReturnsSubmissionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	blob := &audio.Blob{Data: []byte("x"), MIME: audio.MIMEWebM}

	err := c.Submit(context.Background(), blob, 44100)
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("Expected *SubmissionError, got: %v", err)
	}
	if subErr.Status != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", subErr.Status)
	}
}

func TestSubmit_NilBlobRejected(t *testing.T) {
	c := New("http://localhost:1", time.Second)

	err := c.Submit(context.Background(), nil, 44100)
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("Expected *SubmissionError for nil blob, got: %v", err)
	}
}

func TestSubmit_ConnectionRefused(t *testing.T) {
	// Grab a port nobody is listening on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	c := New(endpoint, time.Second)
	blob := &audio.Blob{Data: []byte("x"), MIME: audio.MIMEWebM}

	err := c.Submit(context.Background(), blob, 44100)
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("Expected *SubmissionError for refused connection, got: %v", err)
	}
}

func TestDispatch_DeliversResultOnChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"200","message":"blues"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	blob := &audio.Blob{Data: []byte("x"), MIME: audio.MIMEWebM}

	select {
	case err := <-c.Dispatch(blob, 44100):
		if err != nil {
			t.Errorf("Expected nil result, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch never delivered a result")
	}
}

package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSendJSON(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type=%q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	msg := Message{Embeds: []Embed{{Title: "💬 New Message", Color: 0x5865F2, Fields: []Field{{Name: "From", Value: "Sam", Inline: true}}}}}
	if err := NewClient(srv.URL, srv.Client(), zerolog.Nop()).Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Title != "💬 New Message" || got.Embeds[0].Color != 0x5865F2 {
		t.Fatalf("received=%+v", got)
	}
}

func TestSendMultipartWithFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("Content-Type=%q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		var payload Message
		if err := json.Unmarshal([]byte(r.FormValue("payload_json")), &payload); err != nil || len(payload.Embeds) != 1 {
			t.Errorf("payload_json=%q err=%v", r.FormValue("payload_json"), err)
		}
		fh := r.MultipartForm.File["files[0]"]
		if len(fh) != 1 {
			t.Errorf("files[0] missing")
			return
		}
		if fh[0].Filename != "voice_memo_1.webm" || fh[0].Header.Get("Content-Type") != "audio/webm" {
			t.Errorf("file=%q type=%q", fh[0].Filename, fh[0].Header.Get("Content-Type"))
		}
		f, _ := fh[0].Open()
		data, _ := io.ReadAll(f)
		if string(data) != "audio" {
			t.Errorf("data=%q", data)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	msg := Message{
		Embeds: []Embed{{Title: "🎤 New Voice Memo"}},
		Files:  []File{{Name: "voice_memo_1.webm", ContentType: "audio/webm", Data: []byte("audio")}},
	}
	if err := NewClient(srv.URL, srv.Client(), zerolog.Nop()).Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestSendErrors(t *testing.T) {
	if err := NewClient("", nil, zerolog.Nop()).Send(context.Background(), Message{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err=%v, want ErrNotConfigured", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Invalid Webhook Token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, srv.Client(), zerolog.Nop()).Send(context.Background(), Message{})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err=%v, want StatusError 401", err)
	}
}

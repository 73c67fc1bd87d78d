package requests

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rbctelevision/rbcradio/internal/db"
	"github.com/rbctelevision/rbcradio/internal/discord"
	"github.com/rbctelevision/rbcradio/internal/events"
	"github.com/rbctelevision/rbcradio/internal/models"
	"github.com/rbctelevision/rbcradio/internal/storage"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, _ := database.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

type fakeNotifier struct {
	sent []discord.Message
	err  error
}

func (f *fakeNotifier) Configured() bool { return true }

func (f *fakeNotifier) Send(ctx context.Context, msg discord.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type staticBans map[string]bool

func (b staticBans) IsBanned(ctx context.Context, ip string) (bool, error) { return b[ip], nil }

func TestSubmitWritesLogAndNotifies(t *testing.T) {
	database := setupTestDB(t)
	notifier := &fakeNotifier{}
	bus := events.NewBus()
	sub := bus.Subscribe(events.EventRequestSubmitted)
	svc := NewService(database, notifier, ServiceOptions{Bus: bus}, zerolog.Nop())

	res, err := svc.Submit(context.Background(), SongRequest{Name: "Sam", SongTitle: "T", SongArtist: "A"}, ClientMeta{IP: "203.0.113.9", UserAgent: "test"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var logs []models.RequestLog
	if err := database.Find(&logs).Error; err != nil {
		t.Fatalf("query logs: %v", err)
	}
	if len(logs) != 1 || logs[0].RequestType != models.RequestTypeSong || logs[0].ContentSummary != "Song: T by A" {
		t.Fatalf("logs=%+v", logs)
	}
	if logs[0].ID != res.LogID || logs[0].IPAddress != "203.0.113.9" {
		t.Fatalf("log=%+v result=%+v", logs[0], res)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent=%d, want 1", len(notifier.sent))
	}
	select {
	case ev := <-sub:
		if ev["type"] != "song" {
			t.Fatalf("event=%v", ev)
		}
	default:
		t.Fatal("expected request.submitted event")
	}
}

func TestSubmitRejectsBannedIP(t *testing.T) {
	database := setupTestDB(t)
	notifier := &fakeNotifier{}
	svc := NewService(database, notifier, ServiceOptions{Bans: staticBans{"198.51.100.1": true}}, zerolog.Nop())

	_, err := svc.Submit(context.Background(), MessageRequest{Name: "Sam", Message: "hi"}, ClientMeta{IP: "198.51.100.1"})
	if !errors.Is(err, ErrBanned) {
		t.Fatalf("err=%v, want ErrBanned", err)
	}
	var count int64
	database.Model(&models.RequestLog{}).Count(&count)
	if count != 0 || len(notifier.sent) != 0 {
		t.Fatalf("banned request left side effects: logs=%d sent=%d", count, len(notifier.sent))
	}
}

func TestSubmitNotifierFailureFailsAfterLogging(t *testing.T) {
	database := setupTestDB(t)
	svc := NewService(database, &fakeNotifier{err: &discord.StatusError{StatusCode: 500}}, ServiceOptions{}, zerolog.Nop())

	_, err := svc.Submit(context.Background(), MessageRequest{Name: "Sam", Message: "hi"}, ClientMeta{IP: "203.0.113.9"})
	if !errors.Is(err, ErrNotifyFailed) {
		t.Fatalf("err=%v, want ErrNotifyFailed", err)
	}
	var count int64
	database.Model(&models.RequestLog{}).Count(&count)
	if count != 1 {
		t.Fatalf("logs=%d, want the row kept", count)
	}
}

func TestSubmitWithoutWebhook(t *testing.T) {
	database := setupTestDB(t)
	svc := NewService(database, discord.NewClient("", nil, zerolog.Nop()), ServiceOptions{}, zerolog.Nop())
	if _, err := svc.Submit(context.Background(), MessageRequest{Name: "Sam", Message: "hi"}, ClientMeta{}); !errors.Is(err, ErrNotifierNotConfigured) {
		t.Fatalf("err=%v, want ErrNotifierNotConfigured", err)
	}
}

func TestSubmitArchivesVoiceMemo(t *testing.T) {
	database := setupTestDB(t)
	store, err := storage.NewFilesystemStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := NewService(database, &fakeNotifier{}, ServiceOptions{Store: store, Now: func() time.Time { return fixed }}, zerolog.Nop())

	clip := []byte("opus-bytes")
	res, err := svc.Submit(context.Background(), VoiceRequest{Name: "Sam", VoiceData: base64.StdEncoding.EncodeToString(clip)}, ClientMeta{IP: "203.0.113.9"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.AttachmentKey != "voice/2025/01/02/"+res.LogID+".webm" {
		t.Fatalf("AttachmentKey=%q", res.AttachmentKey)
	}
	got, err := store.Get(context.Background(), res.AttachmentKey)
	if err != nil || string(got) != string(clip) {
		t.Fatalf("archived=%q err=%v", got, err)
	}
	var row models.RequestLog
	if err := database.First(&row, "id = ?", res.LogID).Error; err != nil || row.AttachmentKey != res.AttachmentKey {
		t.Fatalf("row=%+v err=%v", row, err)
	}
}

func TestClientSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/functions/v1/send-request" {
			t.Errorf("path=%q", r.URL.Path)
		}
		p, err := DecodePayloadFrom(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"error":"bad"}`))
			return
		}
		if p.Requester() == "blocked" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false,"error":"requests from this address are blocked"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"Request submitted successfully!"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	msg, err := c.Submit(context.Background(), MessageRequest{Name: "Sam", Message: "hi"})
	if err != nil || msg != "Request submitted successfully!" {
		t.Fatalf("msg=%q err=%v", msg, err)
	}

	_, err = c.Submit(context.Background(), MessageRequest{Name: "blocked", Message: "hi"})
	var se *SubmitError
	if !errors.As(err, &se) || se.StatusCode != http.StatusForbidden || se.Message == "" {
		t.Fatalf("err=%v, want SubmitError 403", err)
	}
}

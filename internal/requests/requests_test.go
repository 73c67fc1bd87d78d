package requests

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rbctelevision/rbcradio/internal/models"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		body string
		want models.RequestType
	}{
		{`{"type":"song","name":"Sam","songTitle":"T","songArtist":"A","spotifyUrl":"u"}`, models.RequestTypeSong},
		{`{"type":"message","name":"Sam","message":"hi"}`, models.RequestTypeMessage},
		{`{"type":"voice","name":"Sam","voiceData":"AAAA"}`, models.RequestTypeVoice},
	}
	for _, tt := range tests {
		p, err := DecodePayload([]byte(tt.body))
		if err != nil {
			t.Fatalf("decode %s: %v", tt.body, err)
		}
		if p.Type() != tt.want || p.Requester() != "Sam" {
			t.Fatalf("payload=%+v, want type %q", p, tt.want)
		}
	}

	if _, err := DecodePayload([]byte(`{"type":"fax","name":"Sam"}`)); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err=%v, want ErrUnknownType", err)
	}
	if _, err := DecodePayload([]byte(`{"name":"Sam"}`)); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("missing type err=%v, want ErrUnknownType", err)
	}
}

func TestMarshalIncludesType(t *testing.T) {
	data, err := json.Marshal(MessageRequest{Name: "Sam", Message: "hi"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"type":"message"`) {
		t.Fatalf("json=%s", data)
	}
	p, err := DecodePayload(data)
	if err != nil || p.(MessageRequest).Message != "hi" {
		t.Fatalf("redecode p=%+v err=%v", p, err)
	}
}

func voiceData(n int) string {
	return "data:audio/webm;codecs=opus;base64," + base64.StdEncoding.EncodeToString(make([]byte, n))
}

func TestValidate(t *testing.T) {
	tooLong := 61.0
	ok := 30.0
	tests := []struct {
		name  string
		p     Payload
		field string
	}{
		{"blank name", MessageRequest{Name: "  ", Message: "hi"}, "name"},
		{"song without pick", SongRequest{Name: "Sam"}, "song"},
		{"empty message", MessageRequest{Name: "Sam", Message: " "}, "message"},
		{"no voice data", VoiceRequest{Name: "Sam"}, "voiceData"},
		{"bad base64", VoiceRequest{Name: "Sam", VoiceData: "%%%"}, "voiceData"},
		{"too long", VoiceRequest{Name: "Sam", VoiceData: voiceData(10), DurationSeconds: &tooLong}, "durationSeconds"},
		{"too big", VoiceRequest{Name: "Sam", VoiceData: voiceData(2048)}, "voiceData"},
		{"valid voice", VoiceRequest{Name: "Sam", VoiceData: voiceData(10), DurationSeconds: &ok}, ""},
		{"valid song", SongRequest{Name: "Sam", SongTitle: "T", SongArtist: "A"}, ""},
	}
	limits := Limits{MaxVoiceBytes: 1024, MaxVoiceSeconds: 60}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.p, limits)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("err=%v, want validation error on %q", err, tt.field)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatal("expected error to wrap ErrValidation")
			}
		})
	}
}

func TestSummary(t *testing.T) {
	if got := Summary(SongRequest{SongTitle: "Halo", SongArtist: "Beyoncé"}); got != "Song: Halo by Beyoncé" {
		t.Fatalf("song summary=%q", got)
	}
	if got := Summary(MessageRequest{Message: "short"}); got != "Message: short" {
		t.Fatalf("message summary=%q", got)
	}
	long := strings.Repeat("é", 150)
	got := Summary(MessageRequest{Message: long})
	if !strings.HasSuffix(got, "...") || utf8.RuneCountInString(got) != len("Message: ")+100+3 {
		t.Fatalf("long summary has %d runes", utf8.RuneCountInString(got))
	}
	exact := strings.Repeat("a", 100)
	if got := Summary(MessageRequest{Message: exact}); strings.HasSuffix(got, "...") {
		t.Fatalf("100-char message should not be truncated: %q", got)
	}
	if got := Summary(VoiceRequest{}); got != "Voice memo submitted" {
		t.Fatalf("voice summary=%q", got)
	}
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	msg, err := BuildMessage(SongRequest{Name: "Sam", SongTitle: "T", SongArtist: "A", SpotifyURL: "https://open.spotify.com/track/1", AlbumArt: "https://img", Comments: "for Mum"}, now)
	if err != nil {
		t.Fatalf("song: %v", err)
	}
	e := msg.Embeds[0]
	if e.Title != "🎵 New Song Request" || e.Color != 0x1DB954 || e.Thumbnail == nil || e.Thumbnail.URL != "https://img" {
		t.Fatalf("song embed=%+v", e)
	}
	if e.Fields[1].Value != "[T](https://open.spotify.com/track/1)" {
		t.Fatalf("song field=%q", e.Fields[1].Value)
	}
	if last := e.Fields[len(e.Fields)-1]; last.Name != "Additional Comments" || last.Value != "for Mum" {
		t.Fatalf("comments field=%+v", last)
	}
	if e.Timestamp != "2025-01-01T12:00:00.000Z" {
		t.Fatalf("timestamp=%q", e.Timestamp)
	}

	msg, err = BuildMessage(MessageRequest{Name: "Sam", Message: "hi"}, now)
	if err != nil || msg.Embeds[0].Color != 0x5865F2 || len(msg.Embeds[0].Fields) != 2 || len(msg.Files) != 0 {
		t.Fatalf("message=%+v err=%v", msg, err)
	}

	msg, err = BuildMessage(VoiceRequest{Name: "Sam", VoiceData: base64.StdEncoding.EncodeToString([]byte("clip"))}, now)
	if err != nil {
		t.Fatalf("voice: %v", err)
	}
	if msg.Embeds[0].Title != "🎤 New Voice Memo" || msg.Embeds[0].Color != 0xED4245 {
		t.Fatalf("voice embed=%+v", msg.Embeds[0])
	}
	if len(msg.Files) != 1 || msg.Files[0].Name != "voice_memo_1735732800000.webm" || string(msg.Files[0].Data) != "clip" {
		t.Fatalf("voice files=%+v", msg.Files)
	}
}

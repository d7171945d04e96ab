package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streamcore/ttsqueue/internal/logging"
	"github.com/streamcore/ttsqueue/internal/tts"
)

type fakeQueue struct {
	mu       sync.Mutex
	requests []tts.Request
	err      error
}

func (q *fakeQueue) Enqueue(user, message string, payload []byte) (tts.Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return tts.Request{}, q.err
	}
	r := tts.NewRequest(user, message, payload, time.Now())
	q.requests = append(q.requests, r)
	return r, nil
}

func (q *fakeQueue) messages() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.requests))
	for i, r := range q.requests {
		out[i] = r.Message
	}
	return out
}

func TestHandle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BannedWords = []string{"  ", "Grosería", "spam"}

	tests := []struct {
		name string
		msg  Message
		want Outcome
		text string
	}{
		{
			name: "plain chat is ignored",
			msg:  Message{Sender: "ana", Content: "hola a todos"},
			want: Ignored,
		},
		{
			name: "command without text is ignored",
			msg:  Message{Sender: "ana", Content: "!decir   "},
			want: Ignored,
		},
		{
			name: "command prefix only is not the command",
			msg:  Message{Sender: "ana", Content: "!decirlo hola"},
			want: Ignored,
		},
		{
			name: "command is case-insensitive",
			msg:  Message{Sender: "ana", Content: "!DECIR hola mundo"},
			want: Enqueued,
			text: "ana dice hola mundo",
		},
		{
			name: "banned word with different case",
			msg:  Message{Sender: "ana", Content: "!decir esto es una GROSERÍA"},
			want: Filtered,
		},
		{
			name: "banned word in sender name",
			msg:  Message{Sender: "SpamBot", Content: "!decir compra ya"},
			want: Filtered,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{}
			p := NewProcessor(q, cfg, logging.Discard())
			got, err := p.Handle(context.Background(), tt.msg)
			if err != nil {
				t.Fatalf("Handle returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("outcome = %v, want %v", got, tt.want)
			}
			msgs := q.messages()
			if tt.want != Enqueued {
				if len(msgs) != 0 {
					t.Errorf("nothing should be queued, got %v", msgs)
				}
				return
			}
			if len(msgs) != 1 || msgs[0] != tt.text {
				t.Errorf("queued %v, want [%q]", msgs, tt.text)
			}
		})
	}
}

func TestHandle_Permissions(t *testing.T) {
	tests := []struct {
		permission Permission
		roles      Roles
		want       Outcome
	}{
		{PermissionAll, Roles{}, Enqueued},
		{PermissionSubscriber, Roles{}, Denied},
		{PermissionSubscriber, Roles{Subscriber: true}, Enqueued},
		{PermissionSubscriber, Roles{Broadcaster: true}, Enqueued},
		{PermissionModerator, Roles{Subscriber: true}, Denied},
		{PermissionModerator, Roles{Moderator: true}, Enqueued},
		{PermissionStreamer, Roles{Moderator: true}, Denied},
		{PermissionStreamer, Roles{Broadcaster: true}, Enqueued},
		{Permission("vip"), Roles{Broadcaster: true}, Denied},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Permission = tt.permission
		p := NewProcessor(&fakeQueue{}, cfg, logging.Discard())
		got, _ := p.Handle(context.Background(), Message{Sender: "u", Content: "!decir hola", Roles: tt.roles})
		if got != tt.want {
			t.Errorf("%s with %+v: got %v, want %v", tt.permission, tt.roles, got, tt.want)
		}
	}
}

func TestHandle_Cooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.UserCooldown = 30 * time.Second
	p := NewProcessor(&fakeQueue{}, cfg, logging.Discard(), WithNow(func() time.Time { return now }))

	send := func(sender string) Outcome {
		t.Helper()
		got, err := p.Handle(context.Background(), Message{Platform: "twitch", Sender: sender, Content: "!decir hola"})
		if err != nil {
			t.Fatal(err)
		}
		return got
	}

	if got := send("ana"); got != Enqueued {
		t.Fatalf("first message: %v", got)
	}
	if got := send("ANA"); got != Throttled {
		t.Errorf("second message within cooldown: %v", got)
	}
	if got := send("luis"); got != Enqueued {
		t.Errorf("other senders are not throttled: %v", got)
	}

	now = now.Add(31 * time.Second)
	if got := send("ana"); got != Enqueued {
		t.Errorf("after cooldown: %v", got)
	}
}

func TestHandle_DisabledAndErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	q := &fakeQueue{}
	p := NewProcessor(q, cfg, logging.Discard())
	if got, _ := p.Handle(context.Background(), Message{Sender: "a", Content: "!decir hola"}); got != Ignored {
		t.Errorf("disabled gate: %v", got)
	}

	cfg.Enabled = true
	cfg.Command = "!tts"
	p.SetConfig(cfg)
	if got, _ := p.Handle(context.Background(), Message{Sender: "a", Content: "!tts hola"}); got != Enqueued {
		t.Errorf("reconfigured command: %v", got)
	}

	q.err = tts.ErrQueueFull
	_, err := p.Handle(context.Background(), Message{Sender: "a", Content: "!tts otra vez"})
	if !errors.Is(err, tts.ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestSetConfig_Defaults(t *testing.T) {
	p := NewProcessor(&fakeQueue{}, Config{Enabled: true, Template: "no verbs"}, logging.Discard())
	cfg := p.Config()
	if cfg.Command != DefaultCommand || cfg.Template != DefaultTemplate {
		t.Errorf("defaults not filled: %+v", cfg)
	}
}

func TestRolesFromTwitchBadges(t *testing.T) {
	tests := []struct {
		badges string
		want   Roles
	}{
		{"", Roles{}},
		{"subscriber/12,premium/1", Roles{Subscriber: true}},
		{"moderator/1", Roles{Moderator: true}},
		{"broadcaster/1", Roles{Broadcaster: true, Moderator: true, Subscriber: true}},
		{"founder/0", Roles{Subscriber: true}},
	}
	for _, tt := range tests {
		if got := RolesFromTwitchBadges(tt.badges); got != tt.want {
			t.Errorf("RolesFromTwitchBadges(%q) = %+v, want %+v", tt.badges, got, tt.want)
		}
	}
}

func TestParsePermission(t *testing.T) {
	tests := map[string]Permission{
		"everyone":    PermissionAll,
		"ALL":         PermissionAll,
		"subscribers": PermissionSubscriber,
		"Moderators":  PermissionModerator,
		"streamer":    PermissionStreamer,
	}
	for in, want := range tests {
		got, err := ParsePermission(in)
		if err != nil || got != want {
			t.Errorf("ParsePermission(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePermission("vip"); err == nil {
		t.Error("expected an error for an unknown permission")
	}
}

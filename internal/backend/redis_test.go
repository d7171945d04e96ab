package backend

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/streamcore/ttsqueue/internal/logging"
	"github.com/streamcore/ttsqueue/internal/tts"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

func waitSubscribed(t *testing.T, mr *miniredis.Miniredis, channel string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mr.PubSubNumSub(channel)[channel] > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no subscriber on %s", channel)
}

func TestRedis_PublishesCommands(t *testing.T) {
	client, mr := newTestRedis(t)
	collab := NewRedis(client, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Command, 10)
	go func() {
		_ = Subscribe(ctx, client, RendererChannel, logging.Discard(), func(_ context.Context, c Command) {
			got <- c
		})
	}()
	waitSubscribed(t, mr, RendererChannel)

	settings := tts.ControlSettings{Volume: 50, Speed: 1.0, Pitch: 3}
	calls := []func() error{
		func() error { return collab.EnqueueRemote(ctx, "id-1", "ana", "hola") },
		func() error { return collab.UpdateSettings(ctx, settings) },
		func() error { return collab.SetEnabled(ctx, false) },
		func() error { return collab.Skip(ctx, "id-1") },
		func() error { return collab.Remove(ctx, "id-2") },
		func() error { return collab.ClearQueue(ctx) },
	}
	for i, call := range calls {
		if err := call(); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}

	want := []Op{OpEnqueue, OpSettings, OpEnabled, OpSkip, OpRemove, OpClear}
	for i, op := range want {
		select {
		case c := <-got:
			if c.Op != op {
				t.Errorf("command %d: op %s, want %s", i, c.Op, op)
			}
			switch c.Op {
			case OpEnqueue:
				if c.ID != "id-1" || c.User != "ana" || c.Message != "hola" {
					t.Errorf("unexpected enqueue command: %+v", c)
				}
			case OpSettings:
				if c.Settings == nil || *c.Settings != settings {
					t.Errorf("unexpected settings command: %+v", c)
				}
			case OpEnabled:
				if c.Enabled == nil || *c.Enabled {
					t.Errorf("unexpected enabled command: %+v", c)
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", op)
		}
	}
}

func TestRedis_PublishFailure(t *testing.T) {
	client, mr := newTestRedis(t)
	collab := NewRedis(client, logging.Discard())
	mr.Close()

	err := collab.SetEnabled(context.Background(), true)
	if !errors.Is(err, tts.ErrCommunication) {
		t.Fatalf("expected ErrCommunication, got %v", err)
	}
	var cerr *tts.CommunicationError
	if !errors.As(err, &cerr) || cerr.Op != string(OpEnabled) {
		t.Errorf("expected CommunicationError for %s, got %v", OpEnabled, err)
	}
}

func TestSubscribe_SkipsMalformed(t *testing.T) {
	client, mr := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan IncomingRequest, 2)
	done := make(chan error, 1)
	go func() {
		done <- Subscribe(ctx, client, RequestChannel, logging.Discard(), func(_ context.Context, r IncomingRequest) {
			got <- r
		})
	}()
	waitSubscribed(t, mr, RequestChannel)

	mr.Publish(RequestChannel, "{not json")
	data, _ := json.Marshal(IncomingRequest{User: "ana", Message: "hola"})
	mr.Publish(RequestChannel, string(data))

	select {
	case r := <-got:
		if r.User != "ana" || r.Message != "hola" {
			t.Errorf("unexpected request: %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for request")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Subscribe should return nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}

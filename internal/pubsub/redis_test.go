package pubsub

import (
	"context"
	"testing"
	"time"

	"settlement/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type chanSink struct {
	ch chan *models.Notification
}

func (s *chanSink) BroadcastNotification(n *models.Notification) {
	s.ch <- n
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestPubSub_ForwardsForeignNotifications(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	sink := &chanSink{ch: make(chan *models.Notification, 4)}
	sub := NewSubscriber(rdb, "notifications", "instance-b", sink)
	if err := sub.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer sub.Close()

	pub := NewPublisher(rdb, "notifications", "instance-a")
	n := &models.Notification{ID: "n-1", Address: "mkBg6GwqZ4XdYQ72vTEqiwfgb6T6WRSDm5", Action: models.ActionOfferAccepted}
	if err := pub.Publish(ctx, n); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	select {
	case got := <-sink.ch:
		if got.ID != "n-1" || got.Address != n.Address || got.Action != n.Action {
			t.Errorf("forwarded = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification not forwarded")
	}

	// мусор в канале не останавливает подписчика
	mr.Publish("notifications", "garbage")
	pub.Publish(ctx, &models.Notification{ID: "n-2", Address: n.Address})

	select {
	case got := <-sink.ch:
		if got.ID != "n-2" {
			t.Errorf("forwarded = %+v, want n-2", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber stopped after malformed payload")
	}
}

func TestPubSub_SkipsOwnNotifications(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()

	sink := &chanSink{ch: make(chan *models.Notification, 4)}
	sub := NewSubscriber(rdb, "notifications", "instance-a", sink)
	if err := sub.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer sub.Close()

	NewPublisher(rdb, "notifications", "instance-a").Publish(ctx, &models.Notification{ID: "own", Address: "x"})
	NewPublisher(rdb, "notifications", "instance-b").Publish(ctx, &models.Notification{ID: "foreign", Address: "x"})

	select {
	case got := <-sink.ch:
		if got.ID != "foreign" {
			t.Errorf("got %s, own notification must be skipped", got.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("foreign notification not forwarded")
	}
}

func TestSubscriber_Lifecycle(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()

	sub := NewSubscriber(rdb, "notifications", "a", &chanSink{ch: make(chan *models.Notification, 1)})
	if err := sub.Close(); err != nil {
		t.Errorf("Close() before Start: %v", err)
	}

	if err := sub.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := sub.Start(ctx); err != ErrAlreadyStarted {
		t.Errorf("second Start() = %v, want ErrAlreadyStarted", err)
	}

	done := make(chan struct{})
	go func() {
		sub.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return")
	}
}

func TestPublisher_RedisUnavailable(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()

	err := NewPublisher(rdb, "notifications", "a").Publish(context.Background(), &models.Notification{ID: "n"})
	if err == nil {
		t.Error("expected error when redis is down")
	}
}

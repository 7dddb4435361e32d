// Package pubsub раздаёт уведомления между экземплярами сервиса через Redis.
//
// Каждый экземпляр публикует сохранённые уведомления в общий канал и
// подписан на него же. Сообщения собственного экземпляра пропускаются:
// локальным WebSocket клиентам они уже доставлены напрямую.
package pubsub

import (
	"context"
	"errors"
	"sync"

	"settlement/internal/models"
	"settlement/pkg/utils"

	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrAlreadyStarted - повторный Start подписчика
var ErrAlreadyStarted = errors.New("subscriber already started")

// Envelope - сообщение в канале Redis
type Envelope struct {
	Origin       string               `json:"origin"`
	Notification *models.Notification `json:"notification"`
}

// Sink получает уведомления других экземпляров
type Sink interface {
	BroadcastNotification(n *models.Notification)
}

// Publisher публикует уведомления в канал Redis
type Publisher struct {
	rdb     *redis.Client
	channel string
	origin  string
}

// NewPublisher создает publisher. origin - идентификатор экземпляра.
func NewPublisher(rdb *redis.Client, channel, origin string) *Publisher {
	return &Publisher{rdb: rdb, channel: channel, origin: origin}
}

// Publish отправляет уведомление остальным экземплярам
func (p *Publisher) Publish(ctx context.Context, n *models.Notification) error {
	payload, err := json.Marshal(Envelope{Origin: p.origin, Notification: n})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, payload).Err()
}

// Subscriber пересылает уведомления из канала Redis в Sink
type Subscriber struct {
	rdb     *redis.Client
	channel string
	origin  string
	sink    Sink

	mu     sync.Mutex
	ps     *redis.PubSub
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *utils.Logger
}

// NewSubscriber создает подписчика. Сообщения с origin этого экземпляра пропускаются.
func NewSubscriber(rdb *redis.Client, channel, origin string, sink Sink) *Subscriber {
	return &Subscriber{
		rdb:     rdb,
		channel: channel,
		origin:  origin,
		sink:    sink,
		log:     utils.L().WithComponent("pubsub"),
	}
}

// Start подписывается на канал и дожидается подтверждения Redis,
// затем читает сообщения в фоне до Close или отмены ctx.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ps != nil {
		return ErrAlreadyStarted
	}

	ps := s.rdb.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.ps = ps
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(runCtx, ps.Channel())

	s.log.Info("subscribed to notifications channel", utils.String("channel", s.channel))
	return nil
}

func (s *Subscriber) run(ctx context.Context, ch <-chan *redis.Message) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handle(msg.Payload)
		}
	}
}

func (s *Subscriber) handle(payload string) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		s.log.Warn("malformed notification envelope", utils.Err(err))
		return
	}
	if env.Origin == s.origin || env.Notification == nil {
		return
	}
	s.sink.BroadcastNotification(env.Notification)
}

// Close отписывается и дожидается завершения фоновой горутины
func (s *Subscriber) Close() error {
	s.mu.Lock()
	ps, cancel := s.ps, s.cancel
	s.ps, s.cancel = nil, nil
	s.mu.Unlock()

	if ps == nil {
		return nil
	}
	cancel()
	err := ps.Close()
	s.wg.Wait()
	return err
}

package websocket

import (
	"bytes"
	"sort"
	"sync"
	"sync/atomic"

	"settlement/internal/metrics"
	"settlement/internal/models"
	"settlement/pkg/utils"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Буферы для сериализации сообщений
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// delivery - сообщение для подписчиков одного адреса
type delivery struct {
	address string
	payload []byte
}

// Hub управляет WebSocket соединениями и подписками на адреса
//
// Клиент подписывается командой subscribe на один или несколько адресов
// (EQB или BTC). Уведомление доставляется только клиентам, подписанным
// на адрес его получателя.
//
// Использование:
// 1. Создать hub: hub := NewHub(cfg.Security.AllowedOrigins)
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять уведомления: hub.BroadcastNotification(n)
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Подписчики по адресу
	subscribers map[string]map[*Client]struct{}

	deliver    chan delivery
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	// Сообщения, не поставленные в очередь (переполнение deliver)
	dropped uint64

	origins *OriginChecker

	// Защищает clients и subscribers
	mu sync.RWMutex

	log *utils.Logger
}

// NewHub создает новый Hub. allowedOrigins пустой или ["*"] - разрешены все.
func NewHub(allowedOrigins []string) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		subscribers: make(map[string]map[*Client]struct{}),
		deliver:     make(chan delivery, 256),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		origins:     NewOriginChecker(allowedOrigins),
		log:         utils.L().WithComponent("websocket"),
	}
}

// Run запускает главный цикл Hub до вызова Stop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			removed := h.removeLocked(client)
			total := len(h.clients)
			h.mu.Unlock()
			if removed {
				h.log.Debug("client disconnected", utils.Int("clients", total))
			}

		case d := <-h.deliver:
			h.fanOut(d)

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// add регистрирует клиента синхронно, до запуска readPump.
// false - hub остановлен.
func (h *Hub) add(client *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Inc()
	h.log.Debug("client connected", utils.Int("clients", total))
	return true
}

// fanOut отправляет сообщение подписчикам адреса.
// Клиенты с переполненным буфером отключаются.
func (h *Hub) fanOut(d delivery) {
	h.mu.RLock()
	subs := h.subscribers[d.address]
	clients := make([]*Client, 0, len(subs))
	for client := range subs {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var slow []*Client
	for _, client := range clients {
		select {
		case client.send <- d.payload:
		default:
			slow = append(slow, client)
		}
	}

	if len(slow) > 0 {
		h.mu.Lock()
		for _, client := range slow {
			h.removeLocked(client)
		}
		total := len(h.clients)
		h.mu.Unlock()
		h.log.Warn("removed slow clients", utils.Int("removed", len(slow)), utils.Int("clients", total))
	}
}

// removeLocked удаляет клиента и его подписки. Вызывается под h.mu.
func (h *Hub) removeLocked(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	for address := range client.addresses {
		h.dropSubscriberLocked(address, client)
	}
	delete(h.clients, client)
	close(client.send)
	metrics.WebSocketClients.Dec()
	return true
}

func (h *Hub) dropSubscriberLocked(address string, client *Client) {
	subs := h.subscribers[address]
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.subscribers, address)
	}
}

// Subscribe добавляет адреса в подписку клиента. Возвращает текущий список.
func (h *Hub) Subscribe(client *Client, addresses []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		for _, address := range addresses {
			if len(client.addresses) >= maxSubscriptions {
				break
			}
			client.addresses[address] = struct{}{}
			subs, ok := h.subscribers[address]
			if !ok {
				subs = make(map[*Client]struct{})
				h.subscribers[address] = subs
			}
			subs[client] = struct{}{}
		}
	}
	return client.subscriptions()
}

// Unsubscribe убирает адреса из подписки клиента
func (h *Hub) Unsubscribe(client *Client, addresses []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, address := range addresses {
		if _, ok := client.addresses[address]; !ok {
			continue
		}
		delete(client.addresses, address)
		h.dropSubscriberLocked(address, client)
	}
	return client.subscriptions()
}

// Broadcast ставит сообщение в очередь для подписчиков address.
// Не блокирует: при переполнении очереди сообщение отбрасывается.
func (h *Hub) Broadcast(address string, message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer jsonBufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.log.Error("failed to marshal websocket message", utils.Err(err))
		return
	}

	data := bytes.TrimRight(buf.Bytes(), "\n")
	payload := make([]byte, len(data))
	copy(payload, data)

	select {
	case h.deliver <- delivery{address: address, payload: payload}:
	default:
		atomic.AddUint64(&h.dropped, 1)
	}
}

// BroadcastNotification доставляет уведомление подписчикам адреса получателя
func (h *Hub) BroadcastNotification(n *models.Notification) {
	if n == nil || n.Address == "" {
		return
	}
	h.Broadcast(n.Address, NewNotificationMessage(n))
}

// Stop останавливает Run и закрывает все соединения
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount возвращает количество клиентов, подписанных на адрес
func (h *Hub) SubscriberCount(address string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[address])
}

// DroppedMessages - число сообщений, отброшенных из-за переполнения очереди
func (h *Hub) DroppedMessages() uint64 {
	return atomic.LoadUint64(&h.dropped)
}

// subscriptions вызывается под h.mu
func (c *Client) subscriptions() []string {
	list := make([]string, 0, len(c.addresses))
	for address := range c.addresses {
		list = append(list, address)
	}
	sort.Strings(list)
	return list
}

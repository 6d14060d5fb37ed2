package engine

import (
	"sync"
	"time"

	"tradecore/internal/models"
	"tradecore/pkg/utils"
)

// PriceListener - подписчик ценовых событий
//
// Реализации должны быть сравнимыми значениями (например, указатель на
// структуру): идентичность слушателя используется как ключ подписки,
// чтобы тот же слушатель можно было позже отписать.
type PriceListener interface {
	// OnPriceUpdate обрабатывает ценовое событие.
	// Возвращённая ошибка логируется и не прерывает доставку
	// остальным подписчикам.
	OnPriceUpdate(update *models.PriceUpdate) error
}

// PriceFeed - хаб распределения ценовых событий (pub/sub по активам)
//
// Функции:
// - Подписка/отписка слушателей по активу
// - Fan-out события всем текущим подписчикам актива
// - Кэш последней известной цены по активу
//
// Доставка идёт по снимку множества подписчиков, взятому в момент
// публикации: подписка или отписка во время fan-out не влияет на
// уже идущую доставку. Порядок доставки между слушателями не
// гарантируется (множество, а не последовательность).
type PriceFeed struct {
	logger *utils.Logger

	mu          sync.RWMutex
	subscribers map[string]map[PriceListener]struct{}
	lastPrices  map[string]models.PriceUpdate
}

// NewPriceFeed создаёт хаб ценовых событий
func NewPriceFeed(logger *utils.Logger) *PriceFeed {
	return &PriceFeed{
		logger:      logger.WithComponent("price_feed"),
		subscribers: make(map[string]map[PriceListener]struct{}),
		lastPrices:  make(map[string]models.PriceUpdate),
	}
}

// Subscribe подписывает слушателя на события актива
func (f *PriceFeed) Subscribe(asset string, listener PriceListener) {
	if listener == nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.subscribers[asset]
	if !ok {
		set = make(map[PriceListener]struct{})
		f.subscribers[asset] = set
	}
	set[listener] = struct{}{}
}

// Unsubscribe отписывает слушателя от событий актива
//
// Актив без оставшихся подписчиков удаляется из реестра.
func (f *PriceFeed) Unsubscribe(asset string, listener PriceListener) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.subscribers[asset]
	if !ok {
		return
	}

	delete(set, listener)
	if len(set) == 0 {
		delete(f.subscribers, asset)
	}
}

// Publish сохраняет событие как последнюю цену актива и доставляет
// его всем текущим подписчикам
//
// Ошибка слушателя изолируется: логируется и не мешает доставке
// остальным, сам Publish не завершается неуспехом.
func (f *PriceFeed) Publish(update *models.PriceUpdate) {
	if update == nil {
		return
	}

	// Копия события: незаданный timestamp заполняется временем публикации
	event := *update
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	f.mu.Lock()
	f.lastPrices[event.Asset] = event

	// Снимок подписчиков: мутации реестра во время fan-out не влияют
	// на уже идущую доставку
	var snapshot []PriceListener
	if set, ok := f.subscribers[event.Asset]; ok {
		snapshot = make([]PriceListener, 0, len(set))
		for listener := range set {
			snapshot = append(snapshot, listener)
		}
	}
	f.mu.Unlock()

	PriceUpdatesPublished.Inc()

	start := time.Now()
	for _, listener := range snapshot {
		if err := listener.OnPriceUpdate(&event); err != nil {
			ListenerFaults.Inc()
			f.logger.Error("price listener failed",
				utils.Asset(event.Asset),
				utils.Price(event.Price),
				utils.Err(err),
			)
		}
	}
	PublishFanoutDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
}

// GetLastPrice возвращает последнюю известную цену актива (nil если нет)
func (f *PriceFeed) GetLastPrice(asset string) *models.PriceUpdate {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if update, ok := f.lastPrices[asset]; ok {
		return &update
	}
	return nil
}

// SubscriberCount возвращает количество подписчиков актива
func (f *PriceFeed) SubscriberCount(asset string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[asset])
}

package engine

import (
	"testing"

	"tradecore/internal/models"
	"tradecore/pkg/utils"
)

func newTestTracker() (*PositionTracker, *PriceFeed) {
	feed := NewPriceFeed(utils.NopLogger())
	return NewPositionTracker(feed, utils.NopLogger()), feed
}

func trackedPosition(asset string, entry, stopLoss, takeProfit float64) *models.Position {
	return &models.Position{
		Asset:      asset,
		Size:       1,
		EntryPrice: entry,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}
}

// ============================================================
// Тесты жизненного цикла позиции
// ============================================================

func TestAddPosition_SubscribesToFeed(t *testing.T) {
	tracker, feed := newTestTracker()

	tracker.AddPosition(trackedPosition("BTC/USD", 50000, 0, 0))

	if n := feed.SubscriberCount("BTC/USD"); n != 1 {
		t.Errorf("подписчиков = %d, want 1", n)
	}
	if tracker.GetPosition("BTC/USD") == nil {
		t.Error("позиция не сохранена")
	}
}

func TestAddPosition_ReplacesExisting(t *testing.T) {
	tracker, feed := newTestTracker()

	tracker.AddPosition(trackedPosition("BTC/USD", 50000, 0, 0))
	tracker.AddPosition(trackedPosition("BTC/USD", 52000, 0, 0))

	got := tracker.GetPosition("BTC/USD")
	if got.EntryPrice != 52000 {
		t.Errorf("entry = %v, want 52000 (перезапись)", got.EntryPrice)
	}
	// Подписка не дублируется: трекер - один и тот же слушатель
	if n := feed.SubscriberCount("BTC/USD"); n != 1 {
		t.Errorf("подписчиков = %d, want 1", n)
	}
}

func TestAddPosition_StoresClone(t *testing.T) {
	tracker, _ := newTestTracker()

	original := trackedPosition("BTC/USD", 50000, 0, 0)
	tracker.AddPosition(original)
	original.EntryPrice = 1

	if got := tracker.GetPosition("BTC/USD"); got.EntryPrice != 50000 {
		t.Errorf("внешняя мутация просочилась в трекер: %v", got.EntryPrice)
	}
}

func TestRemovePosition_Unsubscribes(t *testing.T) {
	tracker, feed := newTestTracker()

	tracker.AddPosition(trackedPosition("BTC/USD", 50000, 0, 0))
	tracker.RemovePosition("BTC/USD")

	if tracker.GetPosition("BTC/USD") != nil {
		t.Error("позиция не удалена")
	}
	if n := feed.SubscriberCount("BTC/USD"); n != 0 {
		t.Errorf("подписчиков = %d, want 0", n)
	}

	// Удаление неизвестного актива безопасно
	tracker.RemovePosition("XRP/USD")
}

// ============================================================
// Тесты обработки ценовых событий
// ============================================================

func TestOnPriceUpdate_TracksPnl(t *testing.T) {
	tracker, feed := newTestTracker()

	tracker.AddPosition(trackedPosition("BTC/USD", 50000, 0, 0))
	feed.Publish(&models.PriceUpdate{Asset: "BTC/USD", Price: 51000})

	got := tracker.GetPosition("BTC/USD")
	if got.CurrentPrice != 51000 {
		t.Errorf("current price = %v, want 51000", got.CurrentPrice)
	}

	summary := tracker.GetPositionSummary()
	if len(summary.Positions) != 1 {
		t.Fatal("позиция пропала из сводки")
	}
	if !floatEquals(summary.Positions[0].PnlPercent, 2) {
		t.Errorf("pnl = %v, want 2", summary.Positions[0].PnlPercent)
	}
}

func TestOnPriceUpdate_UnknownAssetIgnored(t *testing.T) {
	tracker, _ := newTestTracker()

	if err := tracker.OnPriceUpdate(&models.PriceUpdate{Asset: "XRP/USD", Price: 1}); err != nil {
		t.Errorf("неожиданная ошибка: %v", err)
	}
}

func TestOnPriceUpdate_Triggers(t *testing.T) {
	tests := []struct {
		name       string
		stopLoss   float64
		takeProfit float64
		price      float64
		wantGone   bool
	}{
		{
			name:     "price at stop loss removes position",
			stopLoss: 49000, takeProfit: 51500,
			price:    49000,
			wantGone: true,
		},
		{
			name:     "price below stop loss removes position",
			stopLoss: 49000, takeProfit: 51500,
			price:    48000,
			wantGone: true,
		},
		{
			name:     "price at take profit removes position",
			stopLoss: 49000, takeProfit: 51500,
			price:    51500,
			wantGone: true,
		},
		{
			name:     "price above take profit removes position",
			stopLoss: 49000, takeProfit: 51500,
			price:    53000,
			wantGone: true,
		},
		{
			name:     "price strictly between triggers keeps position",
			stopLoss: 49000, takeProfit: 51500,
			price:    50500,
			wantGone: false,
		},
		{
			name:     "unset triggers never fire",
			stopLoss: 0, takeProfit: 0,
			price:    1,
			wantGone: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, feed := newTestTracker()
			tracker.AddPosition(trackedPosition("BTC/USD", 50000, tt.stopLoss, tt.takeProfit))

			feed.Publish(&models.PriceUpdate{Asset: "BTC/USD", Price: tt.price})

			gone := tracker.GetPosition("BTC/USD") == nil
			if gone != tt.wantGone {
				t.Errorf("позиция удалена = %v, want %v", gone, tt.wantGone)
			}
			if tt.wantGone && feed.SubscriberCount("BTC/USD") != 0 {
				t.Error("трекер не отписался после автозакрытия")
			}
		})
	}
}

func TestOnPriceUpdate_StopLossWinsOverTakeProfit(t *testing.T) {
	tracker, feed := newTestTracker()

	// Вырожденная конфигурация: цена пробивает оба триггера разом
	tracker.AddPosition(trackedPosition("BTC/USD", 50000, 51000, 49000))
	feed.Publish(&models.PriceUpdate{Asset: "BTC/USD", Price: 50000})

	// Позиция удалена однократно по stop-loss; паники и двойного
	// удаления быть не должно
	if tracker.GetPosition("BTC/USD") != nil {
		t.Error("позиция должна быть удалена")
	}
}

// ============================================================
// Тесты сводки
// ============================================================

func TestGetPositionSummary_Empty(t *testing.T) {
	tracker, _ := newTestTracker()

	summary := tracker.GetPositionSummary()

	if summary.TotalPositions != 0 || summary.TotalValue != 0 || summary.AveragePnl != 0 {
		t.Errorf("пустая сводка должна быть нулевой: %+v", summary)
	}
	if summary.Positions == nil {
		t.Error("список позиций должен быть пустым, а не nil")
	}
}

func TestGetPositionSummary_Aggregates(t *testing.T) {
	tracker, feed := newTestTracker()

	btc := trackedPosition("BTC/USD", 50000, 48000, 0)
	btc.Size = 0.5
	tracker.AddPosition(btc)

	eth := trackedPosition("ETH/USD", 3000, 0, 3300)
	eth.Size = 2
	tracker.AddPosition(eth)

	feed.Publish(&models.PriceUpdate{Asset: "BTC/USD", Price: 51000}) // +2%
	feed.Publish(&models.PriceUpdate{Asset: "ETH/USD", Price: 3120})  // +4%

	summary := tracker.GetPositionSummary()

	if summary.TotalPositions != 2 {
		t.Fatalf("позиций = %d, want 2", summary.TotalPositions)
	}
	if !floatEquals(summary.TotalValue, 51000*0.5+3120*2) {
		t.Errorf("total value = %v, want %v", summary.TotalValue, 51000*0.5+3120*2)
	}
	if !floatEquals(summary.AveragePnl, 3) {
		t.Errorf("average pnl = %v, want 3", summary.AveragePnl)
	}

	for _, position := range summary.Positions {
		switch position.Asset {
		case "BTC/USD":
			if !position.HasStopLoss || position.HasTakeProfit {
				t.Errorf("BTC/USD флаги триггеров: %+v", position)
			}
		case "ETH/USD":
			if position.HasStopLoss || !position.HasTakeProfit {
				t.Errorf("ETH/USD флаги триггеров: %+v", position)
			}
		default:
			t.Errorf("неожиданный актив в сводке: %s", position.Asset)
		}
	}
}

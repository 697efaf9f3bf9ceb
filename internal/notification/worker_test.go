package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"coffee-fleet-backend/config"
	"coffee-fleet-backend/internal/db"
	"coffee-fleet-backend/internal/model"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:", LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})
	return gormDB
}

func subscribe(t *testing.T, gormDB *gorm.DB, endpoint string, machine *model.Machine) {
	t.Helper()
	sub := model.PushSubscription{Endpoint: endpoint, P256DH: "p256dh", Auth: "auth", Machines: []*model.Machine{machine}}
	require.NoError(t, gormDB.Omit("Machines.*").Create(&sub).Error)
}

func okResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, nil, &webpush.Options{})

	wp.Dispatch(LowStockAlert{MachineID: 123, Item: model.ItemCups, Count: 4, Threshold: 10})

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, int64(123), job.MachineID)
		assert.Equal(t, model.ItemCups, job.Item)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchDropsWhenFull(t *testing.T) {
	wp := NewWorkerPool(1, nil, &webpush.Options{})
	capacity := cap(wp.Jobs())

	for i := 0; i < capacity+5; i++ {
		wp.Dispatch(LowStockAlert{MachineID: int64(i)})
	}
	assert.Equal(t, capacity, len(wp.Jobs()))
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB := newTestDB(t)
	wp := NewWorkerPool(1, gormDB, &webpush.Options{})

	machine := model.Machine{ID: 101, Name: "Lobby"}
	require.NoError(t, gormDB.Create(&machine).Error)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("sends notification for one subscription", func(t *testing.T) {
		subscribe(t, gormDB, "https://example.com/push", &machine)

		var wg sync.WaitGroup
		wg.Add(1)
		var mu sync.Mutex
		var payloads []string
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				mu.Lock()
				payloads = append(payloads, string(payload))
				mu.Unlock()
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "p256dh", sub.Keys.P256dh)
				wg.Done()
				return okResponse(http.StatusCreated), nil
			},
		}

		wp.sendNotificationsForMachine(ctx, LowStockAlert{MachineID: 101, Item: model.ItemCoffee, Count: 1, Threshold: 2})
		wg.Wait()
		assert.Equal(t, []string{"Low stock at Lobby: coffee = 1 (threshold 2)"}, payloads)
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return okResponse(http.StatusGone), nil
			},
		}

		wp.Start(ctx)
		wp.Dispatch(LowStockAlert{MachineID: 101, Item: model.ItemMilk, Count: 0, Threshold: 1})

		assert.Eventually(t, func() bool {
			var n int64
			gormDB.Model(&model.PushSubscription{}).Count(&n)
			return n == 0
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("no subscriptions sends nothing", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Error("sender must not be called without subscriptions")
				return okResponse(http.StatusCreated), nil
			},
		}
		wp.sendNotificationsForMachine(ctx, LowStockAlert{MachineID: 101, Item: model.ItemMilk})
	})
}

func TestFormatAlert_FallsBackToID(t *testing.T) {
	gormDB := newTestDB(t)
	wp := NewWorkerPool(1, gormDB, &webpush.Options{})

	// Subscription linked to a machine id whose row is gone.
	machine := model.Machine{ID: 103, Name: "Gone"}
	require.NoError(t, gormDB.Create(&machine).Error)
	subscribe(t, gormDB, "https://example.com/fallback", &machine)
	require.NoError(t, gormDB.Delete(&model.Machine{}, 103).Error)

	var got string
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			got = string(payload)
			return okResponse(http.StatusCreated), nil
		},
	}

	wp.sendNotificationsForMachine(context.Background(), LowStockAlert{MachineID: 103, Item: model.ItemLids, Count: 3, Threshold: 5})
	assert.Equal(t, "Low stock at 103: lids = 3 (threshold 5)", got)
}

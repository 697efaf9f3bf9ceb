package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"coffee-fleet-backend/config"
	"coffee-fleet-backend/internal/db"
	"coffee-fleet-backend/internal/metrics"
	"coffee-fleet-backend/internal/model"
	"coffee-fleet-backend/internal/notification"
	"coffee-fleet-backend/internal/store"
)

// fakeStore records calls; methods that are not overridden panic through the nil embedded interface.
type fakeStore struct {
	store.Store
	changeCalls int
	changeFunc  func(change store.InventoryChange) (store.InventoryResult, error)
	statusFunc  func(machineID, actorID int64, field model.StatusField) error
}

func (f *fakeStore) ChangeInventory(ctx context.Context, change store.InventoryChange) (store.InventoryResult, error) {
	f.changeCalls++
	return f.changeFunc(change)
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []notification.LowStockAlert
}

func (r *recordingAlerter) Dispatch(alert notification.LowStockAlert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
}

func newLedgerStore(t *testing.T) (store.Store, *gorm.DB) {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:", LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})
	return store.NewGormStore(gormDB), gormDB
}

func seedCoffee(t *testing.T, s store.Store, gormDB *gorm.DB, coffee int) int64 {
	t.Helper()
	machine, err := s.CreateMachine(context.Background(), "Lobby")
	require.NoError(t, err)
	require.NoError(t, gormDB.Model(&model.Inventory{}).Where("machine_id = ?", machine.ID).Update("coffee", coffee).Error)
	return machine.ID
}

func inventoryLogs(t *testing.T, gormDB *gorm.DB) []model.InventoryLogEntry {
	t.Helper()
	var entries []model.InventoryLogEntry
	require.NoError(t, gormDB.Order("id").Find(&entries).Error)
	return entries
}

func TestEngine_Scenarios(t *testing.T) {
	testCases := []struct {
		name            string
		initial         int
		quantity        int
		expectedOutcome Outcome
		expectedCount   int
		expectedLogs    int
	}{
		{name: "Subtract 5 from 10 commits", initial: 10, quantity: 5, expectedOutcome: OutcomeCommitted, expectedCount: 5, expectedLogs: 1},
		{name: "Subtract 5 from 3 is insufficient", initial: 3, quantity: 5, expectedOutcome: OutcomeInsufficientStock, expectedCount: 3, expectedLogs: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, gormDB := newLedgerStore(t)
			machineID := seedCoffee(t, s, gormDB, tc.initial)
			engine := NewEngine(s)

			res, err := engine.Apply(context.Background(), Request{
				MachineID: machineID, ActorID: 42, Action: model.ActionSub, Item: model.ItemCoffee, Quantity: tc.quantity,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.expectedOutcome, res.Outcome)
			assert.Equal(t, tc.expectedCount, res.After)

			snapshot, err := s.GetSnapshot(context.Background(), machineID)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedCount, snapshot.Inventory.Coffee)

			logs := inventoryLogs(t, gormDB)
			require.Len(t, logs, tc.expectedLogs)
			for _, entry := range logs {
				assert.Equal(t, machineID, entry.MachineID)
				assert.Equal(t, model.ActionSub, entry.Action)
				assert.Equal(t, model.ItemCoffee, entry.Item)
				assert.Equal(t, tc.quantity, entry.Qty)
			}
		})
	}
}

func TestEngine_ConcurrentSubtractions(t *testing.T) {
	s, gormDB := newLedgerStore(t)
	machineID := seedCoffee(t, s, gormDB, 10)
	engine := NewEngine(s)

	outcomes := make(chan Outcome, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(actor int64) {
			defer wg.Done()
			res, err := engine.Apply(context.Background(), Request{
				MachineID: machineID, ActorID: actor, Action: model.ActionSub, Item: model.ItemCoffee, Quantity: 6,
			})
			assert.NoError(t, err)
			outcomes <- res.Outcome
		}(int64(i + 1))
	}
	wg.Wait()
	close(outcomes)

	var got []Outcome
	for o := range outcomes {
		got = append(got, o)
	}
	assert.ElementsMatch(t, []Outcome{OutcomeCommitted, OutcomeInsufficientStock}, got)

	snapshot, err := s.GetSnapshot(context.Background(), machineID)
	require.NoError(t, err)
	assert.Equal(t, 4, snapshot.Inventory.Coffee)
	assert.Len(t, inventoryLogs(t, gormDB), 1)
}

func TestEngine_InvalidInputNeverReachesStore(t *testing.T) {
	testCases := []struct {
		name string
		req  Request
	}{
		{name: "Unknown item", req: Request{MachineID: 1, Action: model.ActionAdd, Item: "raf", Quantity: 1}},
		{name: "Zero quantity", req: Request{MachineID: 1, Action: model.ActionAdd, Item: model.ItemMilk, Quantity: 0}},
		{name: "Negative quantity", req: Request{MachineID: 1, Action: model.ActionSub, Item: model.ItemMilk, Quantity: -3}},
		{name: "Unknown action", req: Request{MachineID: 1, Action: "SET", Item: model.ItemMilk, Quantity: 3}},
		{name: "Quantity above the limit", req: Request{MachineID: 1, Action: model.ActionAdd, Item: model.ItemMilk, Quantity: model.MaxQuantity + 1}},
		{name: "Max int quantity", req: Request{MachineID: 1, Action: model.ActionAdd, Item: model.ItemCoffee, Quantity: math.MaxInt}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := &fakeStore{}
			engine := NewEngine(fs)

			_, err := engine.Apply(context.Background(), tc.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Zero(t, fs.changeCalls)
		})
	}
}

func TestEngine_OversizedAddKeepsMachineUsable(t *testing.T) {
	s, gormDB := newLedgerStore(t)
	machineID := seedCoffee(t, s, gormDB, math.MaxInt-10)
	engine := NewEngine(s)
	ctx := context.Background()

	_, err := engine.Apply(ctx, Request{MachineID: machineID, ActorID: 1, Action: model.ActionAdd, Item: model.ItemCoffee, Quantity: 20})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, inventoryLogs(t, gormDB))

	snapshot, err := s.GetSnapshot(ctx, machineID)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt-10, snapshot.Inventory.Coffee)

	res, err := engine.Apply(ctx, Request{MachineID: machineID, ActorID: 1, Action: model.ActionSub, Item: model.ItemCoffee, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.Equal(t, math.MaxInt-11, res.After)
}

func TestEngine_StoreErrors(t *testing.T) {
	t.Run("connectivity failure is wrapped as store unavailable", func(t *testing.T) {
		fs := &fakeStore{changeFunc: func(store.InventoryChange) (store.InventoryResult, error) {
			return store.InventoryResult{}, errors.New("connection refused")
		}}
		_, err := NewEngine(fs).Apply(context.Background(), Request{MachineID: 1, Action: model.ActionAdd, Item: model.ItemCups, Quantity: 1})
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("count overflow is invalid input", func(t *testing.T) {
		fs := &fakeStore{changeFunc: func(store.InventoryChange) (store.InventoryResult, error) {
			return store.InventoryResult{}, store.ErrCountOverflow
		}}
		_, err := NewEngine(fs).Apply(context.Background(), Request{MachineID: 1, Action: model.ActionAdd, Item: model.ItemCups, Quantity: 1})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.NotErrorIs(t, err, ErrStoreUnavailable)
	})

	t.Run("unknown machine passes through", func(t *testing.T) {
		fs := &fakeStore{changeFunc: func(store.InventoryChange) (store.InventoryResult, error) {
			return store.InventoryResult{}, store.ErrMachineNotFound
		}}
		_, err := NewEngine(fs).Apply(context.Background(), Request{MachineID: 9, Action: model.ActionAdd, Item: model.ItemCups, Quantity: 1})
		assert.ErrorIs(t, err, store.ErrMachineNotFound)
		assert.NotErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestEngine_LowStockAlerts(t *testing.T) {
	testCases := []struct {
		name     string
		action   model.Action
		result   store.InventoryResult
		expected int
	}{
		{name: "Crossing the threshold alerts", action: model.ActionSub, result: store.InventoryResult{Applied: true, Before: 5, After: 1}, expected: 1},
		{name: "Already below threshold stays quiet", action: model.ActionSub, result: store.InventoryResult{Applied: true, Before: 1, After: 0}, expected: 0},
		{name: "Landing exactly on threshold stays quiet", action: model.ActionSub, result: store.InventoryResult{Applied: true, Before: 5, After: 2}, expected: 0},
		{name: "Refused subtraction stays quiet", action: model.ActionSub, result: store.InventoryResult{Applied: false, Before: 1, After: 1}, expected: 0},
		{name: "Addition stays quiet", action: model.ActionAdd, result: store.InventoryResult{Applied: true, Before: 0, After: 1}, expected: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := &fakeStore{changeFunc: func(store.InventoryChange) (store.InventoryResult, error) {
				return tc.result, nil
			}}
			alerter := &recordingAlerter{}
			engine := NewEngine(fs,
				WithMetrics(metrics.New(nil)),
				WithLowStockAlerts(alerter, map[model.Item]int{model.ItemMilk: 2}),
			)

			_, err := engine.Apply(context.Background(), Request{MachineID: 3, ActorID: 1, Action: tc.action, Item: model.ItemMilk, Quantity: 4})
			require.NoError(t, err)
			require.Len(t, alerter.alerts, tc.expected)
			if tc.expected == 1 {
				assert.Equal(t, notification.LowStockAlert{MachineID: 3, Item: model.ItemMilk, Count: tc.result.After, Threshold: 2}, alerter.alerts[0])
			}
		})
	}
}

func TestThresholds(t *testing.T) {
	got := Thresholds(map[string]int{"cups": 50, "Coffee": 2, "raf": 1})
	assert.Equal(t, map[model.Item]int{model.ItemCups: 50, model.ItemCoffee: 2}, got)
}

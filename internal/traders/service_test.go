package traders

import (
	"context"
	"sync"
	"testing"

	"github.com/hiiliketocode/polycopy-sub003/internal/clob"
	"github.com/hiiliketocode/polycopy-sub003/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeExchange struct {
	mu       sync.Mutex
	statuses map[string]*clob.OrderStatus
	calls    int
	block    chan struct{}
}

func (f *fakeExchange) TickSize(ctx context.Context, tokenID string) (float64, error) {
	return 0.01, nil
}

func (f *fakeExchange) PostOrder(ctx context.Context, submission *clob.OrderSubmission) (*clob.RawResponse, error) {
	return nil, nil
}

func (f *fakeExchange) GetOrder(ctx context.Context, orderID string) (*clob.OrderStatus, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if status, ok := f.statuses[orderID]; ok {
		return status, nil
	}
	return &clob.OrderStatus{OrderID: orderID, Status: "live"}, nil
}

func (f *fakeExchange) ProxyURL() string { return "http://proxy:8888" }

type fakeQueue struct {
	wallets []string
}

func (f *fakeQueue) Enqueue(wallet string) error {
	f.wallets = append(f.wallets, wallet)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Trader{}, &CopiedOrderRecord{}))
	return db
}

func copyContext(orderID string) orders.CopyContext {
	return orders.CopyContext{
		UserID:             "user-1",
		WalletAddress:      "0x05fc40e3a4cdd9b0b3fbc1ab2f0e8a07a0a16dcf",
		OrderID:            orderID,
		TokenID:            "123456789",
		MarketTitle:        "Will it rain tomorrow?",
		Side:               "BUY",
		Price:              0.13,
		Size:               38.46,
		CopiedTraderWallet: "0x8BA1F109551BD432803012645AC136DDD64DBA72",
	}
}

func TestRecordCopiedOrder_CreatesTraderAndRecord(t *testing.T) {
	queue := &fakeQueue{}
	svc := NewService(newTestDB(t), &fakeExchange{}, queue)

	require.NoError(t, svc.RecordCopiedOrder(context.Background(), copyContext("0xorder1")))

	records, err := svc.ListCopiedOrders("user-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Wallets are stored lowercased.
	assert.Equal(t, "0x8ba1f109551bd432803012645ac136ddd64dba72", records[0].TraderWallet)
	assert.Equal(t, CopiedOrderOpen, records[0].Status)
	assert.Equal(t, []string{"0x8ba1f109551bd432803012645ac136ddd64dba72"}, queue.wallets)
}

func TestRecordCopiedOrder_UpsertIsIdempotent(t *testing.T) {
	svc := NewService(newTestDB(t), &fakeExchange{}, nil)

	cc := copyContext("0xorder1")
	require.NoError(t, svc.RecordCopiedOrder(context.Background(), cc))
	require.NoError(t, svc.RecordCopiedOrder(context.Background(), cc))

	records, err := svc.ListCopiedOrders("user-1", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecordCopiedOrder_ReusesExistingTrader(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &fakeExchange{}, nil)

	require.NoError(t, svc.RecordCopiedOrder(context.Background(), copyContext("0xorder1")))
	require.NoError(t, svc.RecordCopiedOrder(context.Background(), copyContext("0xorder2")))

	var count int64
	require.NoError(t, db.Model(&Trader{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRecordCopiedOrder_SkipsWithoutTraderWallet(t *testing.T) {
	svc := NewService(newTestDB(t), &fakeExchange{}, nil)

	cc := copyContext("0xorder1")
	cc.CopiedTraderWallet = ""
	require.NoError(t, svc.RecordCopiedOrder(context.Background(), cc))

	records, err := svc.ListCopiedOrders("user-1", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecordCopiedOrder_RequiresOrderID(t *testing.T) {
	svc := NewService(newTestDB(t), &fakeExchange{}, nil)

	cc := copyContext("")
	assert.Error(t, svc.RecordCopiedOrder(context.Background(), cc))
}

func TestRecomputeTraderAggregates(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &fakeExchange{}, nil)

	cc1 := copyContext("0xorder1")
	cc2 := copyContext("0xorder2")
	cc2.Price = 0.5
	cc2.Size = 10
	require.NoError(t, svc.RecordCopiedOrder(context.Background(), cc1))
	require.NoError(t, svc.RecordCopiedOrder(context.Background(), cc2))

	require.NoError(t, svc.RecomputeTraderAggregates("0x8ba1f109551bd432803012645ac136ddd64dba72"))

	var trader Trader
	require.NoError(t, db.First(&trader).Error)
	assert.Equal(t, 2, trader.CopiedOrderCount)
	assert.InDelta(t, 0.13*38.46+0.5*10, trader.CopiedVolume, 0.0001)
}

package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trogers1052/trade-journal/internal/models"
)

type mockHoldingsRepo struct {
	mu     sync.Mutex
	calls  int
	user   string
	last   []*models.Holding
	called chan struct{}
}

func (m *mockHoldingsRepo) ReplaceHoldings(userID string, holdings []*models.Holding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.user = userID
	m.last = holdings
	if m.called != nil {
		select {
		case m.called <- struct{}{}:
		default:
		}
	}
	return nil
}

func (m *mockHoldingsRepo) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockHoldingsRepo) LastHoldings() []*models.Holding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

type mockReader struct {
	cfg  kafka.ReaderConfig
	msgs chan kafka.Message

	mu         sync.Mutex
	closeCalls int
}

func newMockReader(topic string, buffer int) *mockReader {
	return &mockReader{
		cfg:  kafka.ReaderConfig{Topic: topic},
		msgs: make(chan kafka.Message, buffer),
	}
}

func (r *mockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.msgs:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *mockReader) Close() error {
	r.mu.Lock()
	r.closeCalls++
	r.mu.Unlock()
	return nil
}

func (r *mockReader) Config() kafka.ReaderConfig {
	return r.cfg
}

func TestHoldingsConsumer_processMessage_ignoresOtherEventTypes(t *testing.T) {
	repo := &mockHoldingsRepo{}
	consumer := &HoldingsConsumer{repo: repo, logger: zap.NewNop()}

	payload, err := json.Marshal(models.HoldingsEvent{EventType: "SOMETHING_ELSE", Data: models.HoldingsEventData{UserID: "u1"}})
	require.NoError(t, err)

	require.NoError(t, consumer.processMessage(context.Background(), kafka.Message{Value: payload}))
	assert.Equal(t, 0, repo.Calls())
}

func TestHoldingsConsumer_Start_consumesAndProcessesMessages(t *testing.T) {
	repo := &mockHoldingsRepo{called: make(chan struct{}, 1)}
	reader := newMockReader("holdings-topic", 1)
	consumer := &HoldingsConsumer{reader: reader, repo: repo, logger: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- consumer.Start(ctx)
	}()

	event := models.HoldingsEvent{
		EventType: models.EventHoldingsSnapshot,
		Source:    "kite",
		Timestamp: time.Now().Format(time.RFC3339),
		Data: models.HoldingsEventData{
			UserID: "u1",
			Holdings: []models.HoldingData{
				{Symbol: "tcs", Quantity: "5", AveragePrice: "3500", LastPrice: "3600"},
				{Symbol: "WIPRO", Quantity: "0", AveragePrice: "400", LastPrice: "410"},
			},
		},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	reader.msgs <- kafka.Message{Value: payload}

	select {
	case <-repo.called:
		// processed
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for holdings snapshot to be processed")
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for consumer to shut down")
	}

	require.Equal(t, 1, repo.Calls())
	holdings := repo.LastHoldings()
	require.Len(t, holdings, 1)

	h := holdings[0]
	assert.Equal(t, "TCS", h.Symbol)
	assert.True(t, h.Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, h.UnrealizedPL.Equal(decimal.NewFromInt(500)))
}

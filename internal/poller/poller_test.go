package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaingateway/internal/apperrors"
	"chaingateway/internal/model"
	"chaingateway/internal/rpc"
	"chaingateway/internal/walker"
)

// scriptedTransport mirrors the walker package's test fake: it answers
// JSON-RPC calls from a per-method table.
type scriptedTransport struct {
	responses map[string]string
}

func (s *scriptedTransport) Post(ctx context.Context, url string, body []byte) ([]byte, error) {
	var req struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	result, ok := s.responses[req.Method]
	if !ok {
		return nil, fmt.Errorf("scriptedTransport: no response configured for %s", req.Method)
	}
	return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"result":%s}`, result)), nil
}

type recordingPublisher struct {
	mu  sync.Mutex
	txs []model.BlockchainTransaction
	err error
}

func (p *recordingPublisher) Publish(ctx context.Context, tx model.BlockchainTransaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.txs = append(p.txs, tx)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}

func newTestPoller(t *testing.T, responses map[string]string, pub Publisher, cfg Config) *Poller {
	t.Helper()
	client := rpc.New("http://example.invalid", &scriptedTransport{responses: responses})
	w := walker.New(client, "0xcontract", "0xtopic", 2)
	return New(model.Eth, w, client, pub, cfg)
}

// Spec §8 scenario 1: tip advance with empty range.
func TestTick_EmptyRangeLeavesCursorUnchanged(t *testing.T) {
	pub := &recordingPublisher{}
	p := newTestPoller(t, map[string]string{
		"eth_blockNumber": `"0x65"`, // 101
	}, pub, Config{ConfirmationDepth: 2, StartBlock: 100})

	p.tick(context.Background())

	assert.Equal(t, uint64(100), p.Cursor().Get())
	assert.Equal(t, 0, pub.count())
	assert.Equal(t, StateIdle, p.Snapshot().State)
}

func TestTick_SuccessAdvancesCursorAndPublishes(t *testing.T) {
	block := `{
		"number": "0xa",
		"hash": "0xblock10",
		"parentHash": "0xgenesis",
		"transactions": [
			{"blockNumber":"0xa","hash":"0xaaa1","from":"0xfrom1","to":"0xto1","value":"0x5af3107a4000","gasPrice":"0x1"}
		]
	}`
	pub := &recordingPublisher{}
	p := newTestPoller(t, map[string]string{
		"eth_blockNumber":           `"0xa"`, // 10
		"eth_getBlockByNumber":      block,
		"eth_getTransactionReceipt": `{"gasUsed":"0x5208","blockNumber":"0xa"}`,
	}, pub, Config{ConfirmationDepth: 0, StartBlock: 9, MaxBatchSize: 10})

	p.tick(context.Background())

	assert.Equal(t, uint64(10), p.Cursor().Get())
	assert.Equal(t, 1, pub.count())
	assert.Equal(t, StateIdle, p.Snapshot().State)
}

// Spec §8 scenario 6 (the poller side): a publish failure must not
// advance the cursor, so the next tick rewalks the same range.
func TestTick_PublishErrorLeavesCursorUnchanged(t *testing.T) {
	block := `{
		"number": "0xa",
		"hash": "0xblock10",
		"parentHash": "0xgenesis",
		"transactions": [
			{"blockNumber":"0xa","hash":"0xaaa1","from":"0xfrom1","to":"0xto1","value":"0x5af3107a4000","gasPrice":"0x1"}
		]
	}`
	pub := &recordingPublisher{err: apperrors.New(apperrors.KindBroker, "channel broken")}
	p := newTestPoller(t, map[string]string{
		"eth_blockNumber":           `"0xa"`,
		"eth_getBlockByNumber":      block,
		"eth_getTransactionReceipt": `{"gasUsed":"0x5208","blockNumber":"0xa"}`,
	}, pub, Config{ConfirmationDepth: 0, StartBlock: 9, MaxBatchSize: 10})

	p.tick(context.Background())

	assert.Equal(t, uint64(9), p.Cursor().Get())
	snap := p.Snapshot()
	assert.Equal(t, StateError, snap.State)
	require.Error(t, snap.LastError)
	assert.Equal(t, apperrors.KindBroker, apperrors.KindOf(snap.LastError))
}

func TestTick_TipErrorLeavesCursorUnchanged(t *testing.T) {
	pub := &recordingPublisher{}
	p := newTestPoller(t, map[string]string{}, pub, Config{ConfirmationDepth: 0, StartBlock: 9})

	p.tick(context.Background())

	assert.Equal(t, uint64(9), p.Cursor().Get())
	assert.Equal(t, StateError, p.Snapshot().State)
}

func TestRun_StopsOnContextCancellation(t *testing.T) {
	pub := &recordingPublisher{}
	p := newTestPoller(t, map[string]string{
		"eth_blockNumber": `"0x9"`, // equals StartBlock, never advances
	}, pub, Config{ConfirmationDepth: 0, StartBlock: 9, TickInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

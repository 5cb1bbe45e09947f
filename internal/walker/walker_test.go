package walker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaingateway/internal/apperrors"
	"chaingateway/internal/rpc"
)

// scriptedTransport answers JSON-RPC calls from a per-method table,
// keyed the same way a hand-rolled mock server would be in the
// absence of a real RPC endpoint.
type scriptedTransport struct {
	responses map[string]string
}

func (s *scriptedTransport) Post(ctx context.Context, url string, body []byte) ([]byte, error) {
	var req struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
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

func newTestClient(responses map[string]string) *rpc.Client {
	return rpc.New("http://example.invalid", &scriptedTransport{responses: responses})
}

func TestResolveWindow_FromTip(t *testing.T) {
	client := newTestClient(map[string]string{
		"eth_blockNumber": `"0x64"`, // 100
	})
	w := New(client, "0xcontract", "0xtopic", 2)

	from, to, err := w.ResolveWindow(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(91), from)
	assert.Equal(t, uint64(100), to)
}

func TestResolveWindow_FromBlockHash(t *testing.T) {
	client := newTestClient(map[string]string{
		"eth_getBlockByHash": `{"number":"0x32"}`, // 50
	})
	w := New(client, "0xcontract", "0xtopic", 2)

	hash := "deadbeef"
	from, to, err := w.ResolveWindow(context.Background(), &hash, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(46), from)
	assert.Equal(t, uint64(50), to)
}

func TestResolveWindow_RejectsZeroBlocksCount(t *testing.T) {
	client := newTestClient(nil)
	w := New(client, "0xcontract", "0xtopic", 2)

	_, _, err := w.ResolveWindow(context.Background(), nil, 0)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))
}

func TestResolveWindow_RejectsUnderflow(t *testing.T) {
	client := newTestClient(map[string]string{
		"eth_blockNumber": `"0x2"`, // 2
	})
	w := New(client, "0xcontract", "0xtopic", 2)

	_, _, err := w.ResolveWindow(context.Background(), nil, 10)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))
}

func TestWalkETH_DropsZeroValue(t *testing.T) {
	block10 := `{
		"number": "0xa",
		"hash": "0xblock10",
		"parentHash": "0xgenesis",
		"transactions": [
			{"blockNumber":"0xa","hash":"0xaaa1","from":"0xfrom1","to":"0xto1","value":"0x5af3107a4000","gasPrice":"0x1"},
			{"blockNumber":"0xa","hash":"0xaaa2","from":"0xfrom2","to":"0xto2","value":"0x0","gasPrice":"0x1"}
		]
	}`
	client := newTestClient(map[string]string{
		"eth_getBlockByNumber":      block10,
		"eth_getTransactionReceipt": `{"gasUsed":"0x5208","blockNumber":"0xa"}`,
	})
	w := New(client, "0xcontract", "0xtopic", 2)

	txs, err := w.WalkETH(context.Background(), 10, 10, 15)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "aaa1", txs[0].Hash)
}

func TestWalkSTQ_BoundedFanOutPreservesOrder(t *testing.T) {
	logsResult := `[
		{"address":"0xcontract","topics":["0xsig","0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa","0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"],"data":"0x1","blockNumber":"0xa","transactionHash":"0xdeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeadbee1","logIndex":"0x0"},
		{"address":"0xcontract","topics":["0xsig","0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa","0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"],"data":"0x2","blockNumber":"0xa","transactionHash":"0xdeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeadbee2","logIndex":"0x1"}
	]`
	client := newTestClient(map[string]string{
		"eth_getLogs":               logsResult,
		"eth_getTransactionByHash":  `{"blockNumber":"0xa","hash":"0xdead","from":"0xfrom","to":"0xto","value":"0x1","gasPrice":"0x3b9aca00"}`,
		"eth_getTransactionReceipt": `{"gasUsed":"0x5208","blockNumber":"0xa"}`,
	})
	w := New(client, "0xcontract", "0xtopic", 4)

	txs, err := w.WalkSTQ(context.Background(), 10, 10, 15)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "deaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeadbee1:0", txs[0].Hash)
	assert.Equal(t, "deaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeaddeadbee2:1", txs[1].Hash)
}

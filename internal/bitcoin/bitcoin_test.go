package bitcoin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUTXOs_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/unspent", r.URL.Path)
		assert.Equal(t, "1address", r.URL.Query().Get("active"))
		w.Write([]byte(`{"unspent_outputs":[{"tx_hash":"aa","tx_output_n":0,"script":"ab","value":5000,"confirmations":3}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	utxos, err := c.GetUTXOs(context.Background(), "1address")
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	assert.Equal(t, "aa", utxos[0].TxHash)
	assert.Equal(t, uint64(5000), utxos[0].Value)
	assert.Equal(t, uint64(3), utxos[0].Confirmations)
}

func TestGetUTXOs_NoFreeOutputsTreatedAsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("No free outputs to spend"))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	utxos, err := c.GetUTXOs(context.Background(), "1address")
	require.NoError(t, err)
	assert.Empty(t, utxos)
}

func TestGetUTXOs_OtherErrorStatusIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.GetUTXOs(context.Background(), "1address")
	require.Error(t, err)
}

func TestSendRawTransaction_ParsesHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		w.Write([]byte(`{"tx":{"hash":"deadbeefcafe"}}`))
	}))
	defer srv.Close()

	c := New("http://unused.invalid", "tok")
	c.pushURL = srv.URL

	hash, err := c.SendRawTransaction(context.Background(), "0100")
	require.NoError(t, err)
	assert.Equal(t, "deadbeefcafe", hash)
}

func TestSendRawTransaction_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New("http://unused.invalid", "tok")
	c.pushURL = srv.URL

	_, err := c.SendRawTransaction(context.Background(), "0100")
	require.Error(t, err)
}

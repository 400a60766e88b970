package reporter

import (
	"context"
	"encoding/json"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/TEENet-io/bridge-validator/agreement"
	"github.com/TEENet-io/bridge-validator/authority"
	"github.com/TEENet-io/bridge-validator/chaintxmgrdb"
	"github.com/TEENet-io/bridge-validator/common"
	"github.com/TEENet-io/bridge-validator/metrics"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRole(t *testing.T) *authority.Role {
	list := common.RandEthAddresses(3)
	role, err := authority.Check(context.Background(),
		agreement.NewMockLedger("eth", list[1], list),
		agreement.NewMockLedger("base", list[1], list),
	)
	require.NoError(t, err)
	return role
}

func newTestServer(t *testing.T, h *HttpReporter) *HttpReader {
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(h.SetupRouter())
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	return NewHttpReader(host, port)
}

func TestHealth(t *testing.T) {
	role := newTestRole(t)
	reader := newTestServer(t, NewHttpReporter("", "", role, []string{"ETH2BASE", "BASE2ETH"}, nil, nil))

	code, body, err := reader.GetHealth()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	var resp struct {
		Status     string            `json:"status"`
		Index      int               `json:"index"`
		Size       int               `json:"size"`
		Identities map[string]string `json:"identities"`
		Directions []string          `json:"directions"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Index)
	assert.Equal(t, 3, resp.Size)
	assert.Equal(t, role.IdentityOn("eth").String(), resp.Identities["eth"])
	assert.Equal(t, []string{"ETH2BASE", "BASE2ETH"}, resp.Directions)

	// metrics route only exists with a registry
	code, _, err = reader.GetMetrics()
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)

	// journal disabled
	code, _, err = reader.GetTxsByTokenId("1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestTxs(t *testing.T) {
	db, err := chaintxmgrdb.NewSQLiteChainTxMgrDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer db.Close()

	txHash := common.RandHash()
	require.NoError(t, db.InsertSubmittedTx(&chaintxmgrdb.SubmittedTx{
		TxHash:           txHash.Bytes(),
		Ledger:           "base",
		Direction:        "ETH2BASE",
		Method:           agreement.MethodValidate,
		TokenId:          big.NewInt(42),
		SentAt:           time.Now().Unix(),
		FoundBlockNumber: big.NewInt(100),
		TxStatus:         chaintxmgrdb.Success,
	}))

	reader := newTestServer(t, NewHttpReporter("", "", newTestRole(t), nil, db, nil))

	type txsResp struct {
		Data []txView `json:"data"`
	}

	code, body, err := reader.GetTxsByTokenId("42")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code, body)
	var resp txsResp
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, txHash.String(), resp.Data[0].TxHash)
	assert.Equal(t, "42", resp.Data[0].TokenId)
	assert.Equal(t, "100", resp.Data[0].FoundBlockNumber)
	assert.Equal(t, "success", resp.Data[0].Status)

	code, body, err = reader.GetTxByHash(txHash.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code, body)

	for _, c := range []struct {
		tokenId, txHash string
		code            int
	}{
		{"43", "", http.StatusNotFound},
		{"-1", "", http.StatusBadRequest},
		{"", "0x1234", http.StatusBadRequest},
		{"", common.RandHash().String(), http.StatusNotFound},
	} {
		if c.txHash != "" {
			code, _, err = reader.GetTxByHash(c.txHash)
		} else {
			code, _, err = reader.GetTxsByTokenId(c.tokenId)
		}
		require.NoError(t, err)
		assert.Equal(t, c.code, code, c)
	}

	code, _, err = reader.get(ROUTE_TXS, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New("")
	m.EventReceived("ETH2BASE", string(agreement.Locked))

	reader := newTestServer(t, NewHttpReporter("", "", newTestRole(t), nil, nil, m.Registry()))

	code, body, err := reader.GetMetrics()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, metrics.DefaultPrefix+"_events_total")
}

func TestRunStopsWithContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHttpReporter("127.0.0.1", "0", newTestRole(t), nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("reporter did not stop")
	}
}

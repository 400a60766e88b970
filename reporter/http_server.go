// This is a http type of reporter.
// It publishes the validator's role, the journal of submitted txs and the
// prometheus metrics on http routes.

package reporter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/TEENet-io/bridge-validator/authority"
	"github.com/TEENet-io/bridge-validator/chaintxmgrdb"
	"github.com/TEENet-io/bridge-validator/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"
)

const (
	ROUTE_HEALTH  = "/health"
	ROUTE_TXS     = "/txs"
	ROUTE_METRICS = "/metrics"

	shutdownTimeout = 5 * time.Second
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	role       *authority.Role
	directions []string
	mgrdb      chaintxmgrdb.ChainTxMgrDB // optional
	registry   *prometheus.Registry      // optional
}

func NewHttpReporter(
	serverIP string,
	serverPort string,
	role *authority.Role,
	directions []string,
	mgrdb chaintxmgrdb.ChainTxMgrDB,
	registry *prometheus.Registry,
) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		role:       role,
		directions: directions,
		mgrdb:      mgrdb,
		registry:   registry,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET(ROUTE_HEALTH, h.Health)
	router.GET(ROUTE_TXS, h.Txs)
	if h.registry != nil {
		router.GET(ROUTE_METRICS, gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))
	}

	return router
}

// Run serves until ctx is done, then shuts the server down.
func (h *HttpReporter) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              h.serverIP + ":" + h.serverPort,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("address", srv.Addr).Info("http reporter listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

func (h *HttpReporter) Health(c *gin.Context) {
	identities := gin.H{}
	for ledger, id := range h.role.Identities() {
		identities[ledger] = id.String()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"role":       h.role.String(),
		"index":      h.role.Index,
		"size":       h.role.Size,
		"identities": identities,
		"directions": h.directions,
	})
}

type txView struct {
	TxHash           string `json:"txHash"`
	Ledger           string `json:"ledger"`
	Direction        string `json:"direction"`
	Method           string `json:"method"`
	TokenId          string `json:"tokenId"`
	SentAt           int64  `json:"sentAt"`
	FoundBlockNumber string `json:"foundBlockNumber,omitempty"`
	Status           string `json:"status"`
}

func newTxView(tx *chaintxmgrdb.SubmittedTx) *txView {
	v := &txView{
		TxHash:    ethcommon.BytesToHash(tx.TxHash).String(),
		Ledger:    tx.Ledger,
		Direction: tx.Direction,
		Method:    tx.Method,
		TokenId:   tx.TokenId.String(),
		SentAt:    tx.SentAt,
		Status:    string(tx.TxStatus),
	}
	if tx.FoundBlockNumber != nil {
		v.FoundBlockNumber = tx.FoundBlockNumber.String()
	}
	return v
}

// Fetch submitted txs from the journal, by token_id or tx_hash.
func (h *HttpReporter) Txs(c *gin.Context) {
	if h.mgrdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}

	tokenIdStr := c.Query("token_id")
	txHashStr := c.Query("tx_hash")

	switch {
	case txHashStr != "":
		if !common.IsHexString(txHashStr, 64) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tx_hash"})
			return
		}
		tx, err := h.mgrdb.GetSubmittedTxByTxHash(ethcommon.HexToHash(txHashStr).Bytes())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if tx == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "No tx found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": []*txView{newTxView(tx)}})

	case tokenIdStr != "":
		tokenId, err := common.ParseTokenId(tokenIdStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		txs, err := h.mgrdb.GetSubmittedTxByTokenId(tokenId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if len(txs) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "No tx found"})
			return
		}
		views := make([]*txView, len(txs))
		for i, tx := range txs {
			views[i] = newTxView(tx)
		}
		c.JSON(http.StatusOK, gin.H{"data": views})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Either token_id or tx_hash must be provided"})
	}
}

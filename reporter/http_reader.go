// Reader is a testing facility to read the output of a http reporter.

package reporter

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type HttpReader struct {
	serverIP   string // listen ip
	serverPort string // listen port
}

func NewHttpReader(serverIP string, serverPort string) *HttpReader {
	return &HttpReader{
		serverIP:   serverIP,
		serverPort: serverPort,
	}
}

func (hr *HttpReader) get(route string, query url.Values) (int, string, error) {
	u := "http://" + hr.serverIP + ":" + hr.serverPort + route
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	resp, err := http.Get(u)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(body), nil
}

func (hr *HttpReader) GetHealth() (int, string, error) {
	return hr.get(ROUTE_HEALTH, nil)
}

func (hr *HttpReader) GetTxsByTokenId(tokenId string) (int, string, error) {
	return hr.get(ROUTE_TXS, url.Values{"token_id": {tokenId}})
}

func (hr *HttpReader) GetTxByHash(txHash string) (int, string, error) {
	return hr.get(ROUTE_TXS, url.Values{"tx_hash": {txHash}})
}

func (hr *HttpReader) GetMetrics() (int, string, error) {
	return hr.get(ROUTE_METRICS, nil)
}

func (hr *HttpReader) String() string {
	return fmt.Sprintf("%s:%s", hr.serverIP, hr.serverPort)
}

// Package metadata retrieves the image of an NFT so that it can be carried
// over to the receiver ledger when the token is recreated there.
package metadata

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://nounsonbase.builders/nouns"
	DefaultTimeout = 30 * time.Second

	// MaxAssetSize bounds the body read for one asset.
	MaxAssetSize = 4 << 20
)

var (
	ErrNilTokenId     = errors.New("token id is nil")
	ErrAssetTooLarge  = errors.New("asset exceeds size limit")
	ErrUnexpectedCode = errors.New("unexpected status code")
)

type Fetcher struct {
	baseURL string
	client  *http.Client
}

// NewFetcher returns a Fetcher for <baseURL>/<tokenId>. A nil client gets
// one with DefaultTimeout.
func NewFetcher(baseURL string, client *http.Client) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// FetchEncodedAsset downloads the asset of tokenId and returns it base64
// (standard alphabet) encoded.
func (f *Fetcher) FetchEncodedAsset(ctx context.Context, tokenId *big.Int) (string, error) {
	if tokenId == nil {
		return "", ErrNilTokenId
	}

	url := fmt.Sprintf("%s/%s", f.baseURL, tokenId.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d from %s", ErrUnexpectedCode, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxAssetSize+1))
	if err != nil {
		return "", err
	}
	if len(body) > MaxAssetSize {
		return "", ErrAssetTooLarge
	}

	logger.WithFields(logger.Fields{
		"tokenId": tokenId,
		"bytes":   len(body),
	}).Debug("fetched asset")

	return base64.StdEncoding.EncodeToString(body), nil
}

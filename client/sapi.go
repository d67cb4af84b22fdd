package client

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
)

const recvWindow = "5000"

// signedPost sends a signed SAPI request for endpoints go-binance has no
// service for and decodes the body into out when out is non-nil.
func (b *BinanceClient) signedPost(ctx context.Context, path string, params map[string]string, out interface{}) error {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	ts := time.Now().UnixMilli()
	if b.client != nil {
		ts -= b.client.TimeOffset
	}
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("recvWindow", recvWindow)

	payload := q.Encode()
	endpoint := b.baseURL + path + "?" + payload + "&signature=" + sign(b.apiSecret, payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := new(common.APIError)
		if jsonErr := json.Unmarshal(body, apiErr); jsonErr != nil || apiErr.Message == "" {
			return fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, string(body))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

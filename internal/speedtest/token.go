package speedtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"
)

const tokenFetchMaxRetries = 3

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// fetchToken retrieves a short-lived bearer token from {baseURL}/token,
// retrying transport/non-2xx failures with jittered exponential backoff
// before giving up: backoff.Retry wrapped in WithMaxRetries/WithContext,
// the same shape as a gRPC dial retry.
func fetchToken(ctx context.Context, client *http.Client, baseURL string) (string, error) {
	var token string

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/token", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			return fmt.Errorf("token fetch: status %d: %s", resp.StatusCode, string(body))
		}

		var parsed tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("token fetch: decode: %w", err))
		}
		token = parsed.Token
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	retryPolicy := backoff.WithMaxRetries(exp, tokenFetchMaxRetries)
	retryPolicy = backoff.WithContext(retryPolicy, ctx)

	if err := backoff.Retry(operation, retryPolicy); err != nil {
		return "", fmt.Errorf("fetch bearer token: %w", err)
	}
	return token, nil
}

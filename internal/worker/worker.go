// Package worker implements the per-source fetchers. Each worker owns its
// source's authentication and pagination and returns the raw payload for one
// run; normalization happens downstream. Workers are independent and run
// concurrently during the fetch phase.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// getJSON performs an authenticated GET and decodes the response into out.
func getJSON(ctx context.Context, client *http.Client, url, authHeader string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("GET %s: %d %s", url, resp.StatusCode, string(detail))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

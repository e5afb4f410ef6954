package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oakmere/regsync/internal/infrastructure/config"
	"github.com/oakmere/regsync/internal/normalize"
)

const (
	intuneTokenURL   = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	intuneDevicesURL = "https://graph.microsoft.com/v1.0/deviceManagement/managedDevices"
)

// Intune fetches managed devices from Microsoft Graph using the
// client-credentials flow. Tokens are cached until shortly before expiry.
type Intune struct {
	tenantID     string
	clientID     string
	clientSecret string
	client       *http.Client
	logger       *zap.Logger

	token       string
	tokenExpiry time.Time
}

func NewIntune(cfg config.IntuneConfig, logger *zap.Logger) *Intune {
	return &Intune{
		tenantID:     cfg.TenantID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       newHTTPClient(30 * time.Second),
		logger:       logger,
	}
}

func (w *Intune) Source() string { return normalize.SourceIntune }

func (w *Intune) Fetch(ctx context.Context) (normalize.Payload, error) {
	payload := normalize.Payload{FetchedAt: time.Now().UTC()}

	token, err := w.accessToken(ctx)
	if err != nil {
		return payload, fmt.Errorf("acquiring graph token: %w", err)
	}

	next := intuneDevicesURL
	for next != "" {
		var page struct {
			Value    []map[string]any `json:"value"`
			NextLink string           `json:"@odata.nextLink"`
		}
		if err := getJSON(ctx, w.client, next, "Bearer "+token, &page); err != nil {
			return payload, fmt.Errorf("fetching managed devices: %w", err)
		}
		for _, rec := range page.Value {
			payload.Devices = append(payload.Devices, normalize.RawRecord(rec))
		}
		next = page.NextLink
	}

	w.logger.Debug("intune fetch complete", zap.Int("devices", len(payload.Devices)))
	return payload, nil
}

func (w *Intune) accessToken(ctx context.Context) (string, error) {
	if w.token != "" && time.Now().Before(w.tokenExpiry) {
		return w.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {w.clientID},
		"client_secret": {w.clientSecret},
		"scope":         {"https://graph.microsoft.com/.default"},
	}
	target := fmt.Sprintf(intuneTokenURL, url.PathEscape(w.tenantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(detail))
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned an empty access token")
	}

	w.token = body.AccessToken
	w.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute)
	return w.token, nil
}

package worker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oakmere/regsync/internal/infrastructure/config"
	"github.com/oakmere/regsync/internal/normalize"
)

// ESET fetches the endpoint inventory from ESET PROTECT's device
// management API.
type ESET struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

func NewESET(cfg config.ESETConfig, logger *zap.Logger) *ESET {
	return &ESET{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  newHTTPClient(30 * time.Second),
		logger:  logger,
	}
}

func (w *ESET) Source() string { return normalize.SourceESET }

func (w *ESET) Fetch(ctx context.Context) (normalize.Payload, error) {
	payload := normalize.Payload{FetchedAt: time.Now().UTC()}

	var body struct {
		Devices []map[string]any `json:"devices"`
	}
	target := w.baseURL + "/v1/device_management/devices"
	if err := getJSON(ctx, w.client, target, "Bearer "+w.token, &body); err != nil {
		return payload, fmt.Errorf("fetching devices: %w", err)
	}
	for _, rec := range body.Devices {
		payload.Devices = append(payload.Devices, normalize.RawRecord(rec))
	}

	w.logger.Debug("eset fetch complete", zap.Int("devices", len(payload.Devices)))
	return payload, nil
}

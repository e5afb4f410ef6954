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

// FortiGate fetches the firewall's view of the estate: the appliance itself,
// detected client devices, interfaces, VLAN/prefix topology and the DHCP and
// ARP derived address table.
type FortiGate struct {
	host   string
	token  string
	client *http.Client
	logger *zap.Logger
}

func NewFortiGate(cfg config.FortiGateConfig, logger *zap.Logger) *FortiGate {
	return &FortiGate{
		host:   strings.TrimRight(cfg.Host, "/"),
		token:  cfg.Token,
		client: newHTTPClient(30 * time.Second),
		logger: logger,
	}
}

func (w *FortiGate) Source() string { return normalize.SourceFortiGate }

type fgtResponse struct {
	Results []map[string]any `json:"results"`
}

func (w *FortiGate) Fetch(ctx context.Context) (normalize.Payload, error) {
	payload := normalize.Payload{FetchedAt: time.Now().UTC()}
	auth := "Bearer " + w.token

	// The appliance itself first; everything else hangs off it.
	var status struct {
		Results map[string]any `json:"results"`
	}
	if err := getJSON(ctx, w.client, w.host+"/api/v2/monitor/system/status", auth, &status); err != nil {
		return payload, fmt.Errorf("fetching system status: %w", err)
	}
	appliance := normalize.RawRecord{
		"hostname":      status.Results["hostname"],
		"serial":        status.Results["serial"],
		"version":       status.Results["version"],
		"hardware_type": "Firewall",
		"os_name":       "FortiOS",
	}
	payload.Devices = append(payload.Devices, appliance)
	applianceName, _ := status.Results["hostname"].(string)

	var detected fgtResponse
	if err := getJSON(ctx, w.client, w.host+"/api/v2/monitor/user/device/query", auth, &detected); err != nil {
		return payload, fmt.Errorf("fetching detected devices: %w", err)
	}
	for _, rec := range detected.Results {
		payload.Devices = append(payload.Devices, normalize.RawRecord(rec))
	}

	var interfaces fgtResponse
	if err := getJSON(ctx, w.client, w.host+"/api/v2/monitor/system/interface", auth, &interfaces); err != nil {
		return payload, fmt.Errorf("fetching interfaces: %w", err)
	}
	for _, rec := range interfaces.Results {
		rec["device"] = applianceName
		payload.Interfaces = append(payload.Interfaces, normalize.RawRecord(rec))
	}

	// The interface config table carries the VLAN and addressing topology.
	var cmdb fgtResponse
	if err := getJSON(ctx, w.client, w.host+"/api/v2/cmdb/system/interface", auth, &cmdb); err != nil {
		return payload, fmt.Errorf("fetching interface config: %w", err)
	}
	for _, rec := range cmdb.Results {
		if vid, ok := rec["vlanid"]; ok && asInt(vid) > 0 {
			payload.VLANs = append(payload.VLANs, normalize.RawRecord{
				"vlan_id":     vid,
				"name":        rec["name"],
				"description": rec["description"],
			})
		}
		if ip, ok := rec["ip"].(string); ok && ip != "" && ip != "0.0.0.0 0.0.0.0" {
			payload.Prefixes = append(payload.Prefixes, normalize.RawRecord{
				"subnet":      ip,
				"description": rec["description"],
				"vlan_id":     rec["vlanid"],
			})
		}
	}

	var leases fgtResponse
	if err := getJSON(ctx, w.client, w.host+"/api/v2/monitor/system/dhcp", auth, &leases); err != nil {
		w.logger.Warn("fetching DHCP leases failed, continuing without", zap.Error(err))
	} else {
		for _, rec := range leases.Results {
			rec["lease_type"] = "dhcp"
			payload.IPAddresses = append(payload.IPAddresses, normalize.RawRecord(rec))
		}
	}

	var arp fgtResponse
	if err := getJSON(ctx, w.client, w.host+"/api/v2/monitor/network/arp", auth, &arp); err != nil {
		w.logger.Warn("fetching ARP table failed, continuing without", zap.Error(err))
	} else {
		for _, rec := range arp.Results {
			rec["lease_type"] = "arp"
			payload.IPAddresses = append(payload.IPAddresses, normalize.RawRecord(rec))
		}
	}

	return payload, nil
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

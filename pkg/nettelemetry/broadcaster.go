package nettelemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/kubarr/kubarr/internal/broadcast"
)

// nodeColors is the fixed 8-color palette assigned round-robin to
// namespace nodes in iteration order.
var nodeColors = []string{
	"#3b82f6", "#22c55e", "#f59e0b", "#ef4444",
	"#8b5cf6", "#06b6d4", "#ec4899", "#f97316",
}

type NetworkMetricsMessage struct {
	Type      string              `json:"type"`
	Timestamp int64               `json:"timestamp"`
	Topology  NetworkTopologyData `json:"topology"`
	Stats     []NetworkStatsData  `json:"stats"`
}

type NetworkTopologyData struct {
	Nodes []NetworkNodeData `json:"nodes"`
	Edges []NetworkEdgeData `json:"edges"`
}

type NetworkNodeData struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	RxBytesPerSec  float64 `json:"rx_bytes_per_sec"`
	TxBytesPerSec  float64 `json:"tx_bytes_per_sec"`
	TotalTraffic   float64 `json:"total_traffic"`
	PodCount       int     `json:"pod_count"`
	Color          string  `json:"color"`
}

type NetworkEdgeData struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Type     string `json:"type"`
	Port     int32  `json:"port,omitempty"`
	Protocol string `json:"protocol,omitempty"`
	Label    string `json:"label,omitempty"`
}

type NetworkStatsData struct {
	Namespace          string  `json:"namespace"`
	AppName            string  `json:"app_name"`
	RxBytesPerSec      float64 `json:"rx_bytes_per_sec"`
	TxBytesPerSec      float64 `json:"tx_bytes_per_sec"`
	RxPacketsPerSec    float64 `json:"rx_packets_per_sec"`
	TxPacketsPerSec    float64 `json:"tx_packets_per_sec"`
	RxErrorsPerSec     float64 `json:"rx_errors_per_sec"`
	TxErrorsPerSec     float64 `json:"tx_errors_per_sec"`
	RxDroppedPerSec    float64 `json:"rx_dropped_per_sec"`
	TxDroppedPerSec    float64 `json:"tx_dropped_per_sec"`
	PodCount           int     `json:"pod_count"`
}

// Broadcaster ticks once a second, always recomputing rates to keep the
// cache warm, but only serializing and publishing when at least one
// subscriber is listening.
type Broadcaster struct {
	sampler    *Sampler
	discoverer *Discoverer
	rates      *RateCache
	logger     *slog.Logger
	topic      *broadcast.Topic[[]byte]
}

func NewBroadcaster(sampler *Sampler, discoverer *Discoverer, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		sampler:    sampler,
		discoverer: discoverer,
		rates:      NewRateCache(),
		logger:     logger,
		topic:      broadcast.NewTopic[[]byte](8),
	}
}

func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	return b.topic.Subscribe()
}

// Run ticks once a second until ctx is canceled.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.tick(ctx)
		}
	}
}

func (b *Broadcaster) tick(ctx context.Context) {
	msg, err := b.computeMessage(ctx)
	if err != nil {
		b.logger.Warn("nettelemetry: computing metrics", "error", err)
		return
	}

	if b.topic.SubscriberCount() == 0 {
		return
	}

	encoded, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("nettelemetry: encoding message", "error", err)
		return
	}
	b.topic.Publish(encoded)
}

func (b *Broadcaster) computeMessage(ctx context.Context) (NetworkMetricsMessage, error) {
	now := time.Now()

	containerMetrics, err := b.sampler.FetchAll(ctx)
	if err != nil {
		return NetworkMetricsMessage{}, err
	}
	byNS := AggregateByNamespace(containerMetrics)

	edges, err := b.discoverer.Discover(ctx)
	if err != nil {
		return NetworkMetricsMessage{}, err
	}

	var nodes []NetworkNodeData
	var stats []NetworkStatsData
	var totalTraffic float64
	colorIdx := 0

	for ns, m := range byNS {
		rx := b.rates.RateFromDelta(ns+":rx_bytes", m.RxBytes, now)
		tx := b.rates.RateFromDelta(ns+":tx_bytes", m.TxBytes, now)
		rxPkts := b.rates.RateFromDelta(ns+":rx_packets", m.RxPackets, now)
		txPkts := b.rates.RateFromDelta(ns+":tx_packets", m.TxPackets, now)
		rxErr := b.rates.RateFromDelta(ns+":rx_errors", m.RxErrors, now)
		txErr := b.rates.RateFromDelta(ns+":tx_errors", m.TxErrors, now)
		rxDrop := b.rates.RateFromDelta(ns+":rx_dropped", m.RxPacketsDropped, now)
		txDrop := b.rates.RateFromDelta(ns+":tx_dropped", m.TxPacketsDropped, now)

		nodes = append(nodes, NetworkNodeData{
			ID:            ns,
			Name:          capitalizeFirst(ns),
			Type:          "namespace",
			RxBytesPerSec: rx,
			TxBytesPerSec: tx,
			TotalTraffic:  rx + tx,
			PodCount:      m.PodCount,
			Color:         nodeColors[colorIdx%len(nodeColors)],
		})
		colorIdx++
		totalTraffic += rx + tx

		stats = append(stats, NetworkStatsData{
			Namespace:       ns,
			AppName:         ns,
			RxBytesPerSec:   rx,
			TxBytesPerSec:   tx,
			RxPacketsPerSec: rxPkts,
			TxPacketsPerSec: txPkts,
			RxErrorsPerSec:  rxErr,
			TxErrorsPerSec:  txErr,
			RxDroppedPerSec: rxDrop,
			TxDroppedPerSec: txDrop,
			PodCount:        m.PodCount,
		})
	}

	if totalTraffic > 0 {
		nodes = append(nodes, NetworkNodeData{ID: ExternalNode, Name: "External", Type: "external"})
	}

	edgeData := make([]NetworkEdgeData, 0, len(edges))
	for _, e := range edges {
		edgeData = append(edgeData, NetworkEdgeData{Source: e.Source, Target: e.Target, Type: e.Type, Port: e.Port})
	}

	return NetworkMetricsMessage{
		Type:      "network_metrics",
		Timestamp: now.Unix(),
		Topology:  NetworkTopologyData{Nodes: nodes, Edges: edgeData},
		Stats:     stats,
	}, nil
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Package nettelemetry samples per-pod network counters from each node's
// cAdvisor, aggregates them by namespace, turns the deltas into rates,
// discovers cross-namespace traffic topology from cluster metadata, and
// broadcasts both as a single message once per second.
package nettelemetry

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ContainerNetworkMetrics holds the eight cAdvisor network counters for a
// single container/pod/interface tuple.
type ContainerNetworkMetrics struct {
	Namespace        string
	Pod              string
	Interface        string
	RxBytes          float64
	TxBytes          float64
	RxPackets        float64
	TxPackets        float64
	RxErrors         float64
	TxErrors         float64
	RxPacketsDropped float64
	TxPacketsDropped float64
}

// NamespaceNetworkMetrics is the per-namespace sum of every pod's counters.
type NamespaceNetworkMetrics struct {
	Namespace        string
	PodCount         int
	RxBytes          float64
	TxBytes          float64
	RxPackets        float64
	TxPackets        float64
	RxErrors         float64
	TxErrors         float64
	RxPacketsDropped float64
	TxPacketsDropped float64
}

// Sampler fetches and parses cAdvisor's Prometheus text output from every
// node in the cluster, via the API server's node proxy subresource.
type Sampler struct {
	k8s func() (kubernetes.Interface, error)
}

func NewSampler(k8s func() (kubernetes.Interface, error)) *Sampler {
	return &Sampler{k8s: k8s}
}

// FetchAll samples every node and returns the combined per-container
// metrics across the whole cluster.
func (s *Sampler) FetchAll(ctx context.Context) ([]ContainerNetworkMetrics, error) {
	client, err := s.k8s()
	if err != nil {
		return nil, fmt.Errorf("getting kubernetes client: %w", err)
	}

	nodes, err := client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}

	var all []ContainerNetworkMetrics
	for _, node := range nodes.Items {
		body, err := client.CoreV1().RESTClient().Get().
			Resource("nodes").
			Name(node.Name).
			SubResource("proxy").
			Suffix("metrics/cadvisor").
			DoRaw(ctx)
		if err != nil {
			continue // a single unreachable node shouldn't blank out the rest
		}
		all = append(all, parsePrometheusMetrics(string(body))...)
	}
	return all, nil
}

// parsePrometheusMetrics extracts container_network_* lines from a
// cAdvisor scrape.
func parsePrometheusMetrics(text string) []ContainerNetworkMetrics {
	byKey := make(map[[3]string]*ContainerNetworkMetrics)

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "container_network_") {
			continue
		}
		parseNetworkMetricLine(line, byKey)
	}

	out := make([]ContainerNetworkMetrics, 0, len(byKey))
	for _, m := range byKey {
		out = append(out, *m)
	}
	return out
}

// parseNetworkMetricLine dispatches a single cAdvisor metric line to the
// right counter. Dropped-packet metrics are checked before the plain
// packet counters: "receive_packets_dropped" contains "receive_packets"
// as a substring, so checking order matters.
func parseNetworkMetricLine(line string, byKey map[[3]string]*ContainerNetworkMetrics) {
	nameEnd := strings.IndexByte(line, '{')
	if nameEnd < 0 {
		return
	}
	name := line[:nameEnd]

	labels := parseLabels(line[nameEnd:])
	namespace, pod, iface := labels["namespace"], labels["pod"], labels["interface"]
	if namespace == "" || pod == "" || iface == "" || iface == "lo" {
		return
	}

	value, err := parseMetricValue(line)
	if err != nil {
		return
	}

	key := [3]string{namespace, pod, iface}
	m, ok := byKey[key]
	if !ok {
		m = &ContainerNetworkMetrics{Namespace: namespace, Pod: pod, Interface: iface}
		byKey[key] = m
	}

	switch {
	case strings.Contains(name, "receive_packets_dropped"):
		m.RxPacketsDropped += value
	case strings.Contains(name, "transmit_packets_dropped"):
		m.TxPacketsDropped += value
	case strings.Contains(name, "receive_errors"):
		m.RxErrors += value
	case strings.Contains(name, "transmit_errors"):
		m.TxErrors += value
	case strings.Contains(name, "receive_packets"):
		m.RxPackets += value
	case strings.Contains(name, "transmit_packets"):
		m.TxPackets += value
	case strings.Contains(name, "receive_bytes"):
		m.RxBytes += value
	case strings.Contains(name, "transmit_bytes"):
		m.TxBytes += value
	}
}

func parseLabels(braced string) map[string]string {
	end := strings.IndexByte(braced, '}')
	if end < 0 {
		return nil
	}
	labels := make(map[string]string)
	for _, pair := range strings.Split(braced[1:end], ",") {
		pair = strings.TrimSpace(pair)
		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			continue
		}
		key := pair[:eq]
		val := strings.Trim(pair[eq+1:], `"`)
		labels[key] = val
	}
	return labels
}

func parseMetricValue(line string) (float64, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty line")
	}
	raw := fields[len(fields)-1]
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return math.Round(value), nil
}

// AggregateByNamespace sums every container's counters per namespace and
// counts the distinct pods contributing to each.
func AggregateByNamespace(metrics []ContainerNetworkMetrics) map[string]*NamespaceNetworkMetrics {
	byNS := make(map[string]*NamespaceNetworkMetrics)
	pods := make(map[string]map[string]struct{})

	for _, m := range metrics {
		ns, ok := byNS[m.Namespace]
		if !ok {
			ns = &NamespaceNetworkMetrics{Namespace: m.Namespace}
			byNS[m.Namespace] = ns
			pods[m.Namespace] = make(map[string]struct{})
		}
		ns.RxBytes += m.RxBytes
		ns.TxBytes += m.TxBytes
		ns.RxPackets += m.RxPackets
		ns.TxPackets += m.TxPackets
		ns.RxErrors += m.RxErrors
		ns.TxErrors += m.TxErrors
		ns.RxPacketsDropped += m.RxPacketsDropped
		ns.TxPacketsDropped += m.TxPacketsDropped
		pods[m.Namespace][m.Pod] = struct{}{}
	}

	for ns, set := range pods {
		byNS[ns].PodCount = len(set)
	}
	return byNS
}

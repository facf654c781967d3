package nettelemetry

import "testing"

const sampleScrape = `# HELP container_network_receive_bytes_total Cumulative count of bytes received
# TYPE container_network_receive_bytes_total counter
container_network_receive_bytes_total{namespace="sonarr",pod="sonarr-0",interface="eth0"} 1024
container_network_receive_bytes_total{namespace="sonarr",pod="sonarr-0",interface="lo"} 99999
container_network_transmit_bytes_total{namespace="sonarr",pod="sonarr-0",interface="eth0"} 2048
container_network_receive_packets_total{namespace="sonarr",pod="sonarr-0",interface="eth0"} 10
container_network_receive_packets_dropped_total{namespace="sonarr",pod="sonarr-0",interface="eth0"} 1
container_network_transmit_errors_total{namespace="sonarr",pod="sonarr-0",interface="eth0"} 2
container_network_receive_bytes_total{namespace="radarr",pod="radarr-0",interface="eth0"} 512
`

func TestParsePrometheusMetrics(t *testing.T) {
	got := parsePrometheusMetrics(sampleScrape)

	if len(got) != 2 {
		t.Fatalf("parsePrometheusMetrics() returned %d entries, want 2", len(got))
	}

	byPod := make(map[string]ContainerNetworkMetrics)
	for _, m := range got {
		byPod[m.Pod] = m
	}

	sonarr, ok := byPod["sonarr-0"]
	if !ok {
		t.Fatal("missing sonarr-0 entry")
	}
	if sonarr.RxBytes != 1024 {
		t.Errorf("RxBytes = %v, want 1024 (loopback interface should be excluded)", sonarr.RxBytes)
	}
	if sonarr.TxBytes != 2048 {
		t.Errorf("TxBytes = %v, want 2048", sonarr.TxBytes)
	}
	if sonarr.RxPackets != 10 {
		t.Errorf("RxPackets = %v, want 10", sonarr.RxPackets)
	}
	if sonarr.RxPacketsDropped != 1 {
		t.Errorf("RxPacketsDropped = %v, want 1 (not double-counted into RxPackets)", sonarr.RxPacketsDropped)
	}
	if sonarr.TxErrors != 2 {
		t.Errorf("TxErrors = %v, want 2", sonarr.TxErrors)
	}

	radarr, ok := byPod["radarr-0"]
	if !ok {
		t.Fatal("missing radarr-0 entry")
	}
	if radarr.RxBytes != 512 {
		t.Errorf("RxBytes = %v, want 512", radarr.RxBytes)
	}
}

func TestParsePrometheusMetricsIgnoresUnrelatedLines(t *testing.T) {
	text := `container_cpu_usage_seconds_total{namespace="sonarr",pod="sonarr-0"} 5
# a comment

container_network_receive_bytes_total{namespace="sonarr",pod="sonarr-0",interface="eth0"} 100
`
	got := parsePrometheusMetrics(text)
	if len(got) != 1 {
		t.Fatalf("parsePrometheusMetrics() returned %d entries, want 1", len(got))
	}
}

func TestAggregateByNamespace(t *testing.T) {
	metrics := []ContainerNetworkMetrics{
		{Namespace: "sonarr", Pod: "sonarr-0", Interface: "eth0", RxBytes: 100, TxBytes: 200},
		{Namespace: "sonarr", Pod: "sonarr-1", Interface: "eth0", RxBytes: 50, TxBytes: 25},
		{Namespace: "radarr", Pod: "radarr-0", Interface: "eth0", RxBytes: 10, TxBytes: 10},
	}

	byNS := AggregateByNamespace(metrics)

	sonarr, ok := byNS["sonarr"]
	if !ok {
		t.Fatal("missing sonarr namespace")
	}
	if sonarr.RxBytes != 150 || sonarr.TxBytes != 225 {
		t.Errorf("sonarr totals = rx:%v tx:%v, want rx:150 tx:225", sonarr.RxBytes, sonarr.TxBytes)
	}
	if sonarr.PodCount != 2 {
		t.Errorf("sonarr PodCount = %d, want 2", sonarr.PodCount)
	}

	radarr, ok := byNS["radarr"]
	if !ok {
		t.Fatal("missing radarr namespace")
	}
	if radarr.PodCount != 1 {
		t.Errorf("radarr PodCount = %d, want 1", radarr.PodCount)
	}
}

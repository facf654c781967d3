package nettelemetry

import (
	"testing"

	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestIsExcludedNamespace(t *testing.T) {
	tests := []struct {
		ns   string
		want bool
	}{
		{"", true},
		{"default", true},
		{"kube-system", true},
		{"kube-public", true},
		{"local-path-storage", true},
		{"linux", true},
		{"sonarr", false},
		{"radarr", false},
	}

	for _, tt := range tests {
		if got := isExcludedNamespace(tt.ns); got != tt.want {
			t.Errorf("isExcludedNamespace(%q) = %v, want %v", tt.ns, got, tt.want)
		}
	}
}

func TestReferencedNamespaces(t *testing.T) {
	aliases := map[string]string{
		"sonarr":                          "sonarr",
		"sonarr.sonarr":                   "sonarr",
		"sonarr.sonarr.svc.cluster.local": "sonarr",
		"radarr":                          "radarr",
	}

	got := referencedNamespaces("connect to http://sonarr.sonarr.svc.cluster.local:8989", aliases, "prowlarr")
	if len(got) != 1 || got[0] != "sonarr" {
		t.Errorf("referencedNamespaces() = %v, want [sonarr]", got)
	}
}

func TestReferencedNamespacesExcludesOwnNamespace(t *testing.T) {
	aliases := map[string]string{"sonarr": "sonarr"}

	got := referencedNamespaces("talking to sonarr internally", aliases, "sonarr")
	if len(got) != 0 {
		t.Errorf("referencedNamespaces() = %v, want empty (self-reference excluded)", got)
	}
}

func TestAllowsExternalNoRules(t *testing.T) {
	if allowsExternal(nil) {
		t.Error("allowsExternal(nil) = true, want false (empty egress rules block everything)")
	}
}

func TestAllowsExternalNoPeers(t *testing.T) {
	rules := []networkingv1.NetworkPolicyEgressRule{{}}
	if !allowsExternal(rules) {
		t.Error("allowsExternal() with a peerless rule = false, want true")
	}
}

func TestAllowsExternalOpenCIDR(t *testing.T) {
	rules := []networkingv1.NetworkPolicyEgressRule{
		{To: []networkingv1.NetworkPolicyPeer{{IPBlock: &networkingv1.IPBlock{CIDR: "0.0.0.0/0"}}}},
	}
	if !allowsExternal(rules) {
		t.Error("allowsExternal() with 0.0.0.0/0 = false, want true")
	}
}

func TestAllowsExternalRestrictedToNamespace(t *testing.T) {
	selector := &metav1.LabelSelector{MatchLabels: map[string]string{"name": "sonarr"}}
	rules := []networkingv1.NetworkPolicyEgressRule{
		{To: []networkingv1.NetworkPolicyPeer{{NamespaceSelector: selector}}},
	}
	if allowsExternal(rules) {
		t.Error("allowsExternal() restricted to a namespace selector = true, want false")
	}
}

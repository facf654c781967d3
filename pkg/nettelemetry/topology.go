package nettelemetry

import (
	"context"
	"fmt"
	"strings"

	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Edge types recorded on a TopologyEdge.
const (
	EdgeConfig         = "config"
	EdgeUpstream       = "upstream"
	EdgeEndpoint       = "endpoint"
	EdgeIngress        = "ingress"
	EdgeIngressBackend = "ingress-backend"
	EdgeEgress         = "egress"
)

// ExternalNode is the synthetic node id representing traffic crossing
// the cluster boundary.
const ExternalNode = "external"

type TopologyEdge struct {
	Source string
	Target string
	Type   string
	Port   int32
}

// Discoverer infers cross-namespace (and namespace-to-external) traffic
// relationships from cluster metadata: ConfigMap contents, Service
// annotations, Endpoints subsets, Ingress rules and NetworkPolicies. It
// never observes actual packets — this is a best-effort topology built
// from configuration, which is why duplicate edges are deduped by
// (source, target) alone, dropping any type/port distinction on repeats.
type Discoverer struct {
	k8s func() (kubernetes.Interface, error)
}

func NewDiscoverer(k8s func() (kubernetes.Interface, error)) *Discoverer {
	return &Discoverer{k8s: k8s}
}

func isExcludedNamespace(ns string) bool {
	return ns == "" || ns == "default" || ns == "linux" || ns == "local-path-storage" || strings.HasPrefix(ns, "kube-")
}

// Discover returns the deduplicated edge set across every non-excluded
// namespace in the cluster.
func (d *Discoverer) Discover(ctx context.Context) ([]TopologyEdge, error) {
	client, err := d.k8s()
	if err != nil {
		return nil, fmt.Errorf("getting kubernetes client: %w", err)
	}

	namespaces, err := client.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}

	var nsNames []string
	for _, ns := range namespaces.Items {
		if !isExcludedNamespace(ns.Name) {
			nsNames = append(nsNames, ns.Name)
		}
	}

	aliases := buildServiceAliases(ctx, client, nsNames)

	seen := make(map[[2]string]struct{})
	var edges []TopologyEdge
	add := func(e TopologyEdge) {
		key := [2]string{e.Source, e.Target}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		edges = append(edges, e)
	}

	for _, ns := range nsNames {
		d.scanConfigMaps(ctx, client, ns, aliases, add)
		d.scanServiceAnnotations(ctx, client, ns, aliases, add)
		d.scanEndpoints(ctx, client, ns, add)
		d.scanIngressAndExternal(ctx, client, ns, add)
		d.scanEgress(ctx, client, ns, add)
	}

	return edges, nil
}

// buildServiceAliases maps every way a Service's DNS name might appear in
// a ConfigMap or annotation (bare name, name.namespace, FQDN) back to its
// owning namespace.
func buildServiceAliases(ctx context.Context, client kubernetes.Interface, namespaces []string) map[string]string {
	aliases := make(map[string]string)
	for _, ns := range namespaces {
		svcs, err := client.CoreV1().Services(ns).List(ctx, metav1.ListOptions{})
		if err != nil {
			continue
		}
		for _, svc := range svcs.Items {
			aliases[svc.Name] = ns
			aliases[svc.Name+"."+ns] = ns
			aliases[svc.Name+"."+ns+".svc.cluster.local"] = ns
		}
	}
	return aliases
}

func referencedNamespaces(value string, aliases map[string]string, ownNS string) []string {
	var found []string
	seen := make(map[string]struct{})
	for alias, ns := range aliases {
		if ns == ownNS {
			continue
		}
		if _, dup := seen[ns]; dup {
			continue
		}
		if strings.Contains(value, alias) {
			seen[ns] = struct{}{}
			found = append(found, ns)
		}
	}
	return found
}

func (d *Discoverer) scanConfigMaps(ctx context.Context, client kubernetes.Interface, ns string, aliases map[string]string, add func(TopologyEdge)) {
	cms, err := client.CoreV1().ConfigMaps(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return
	}
	for _, cm := range cms.Items {
		for _, value := range cm.Data {
			for _, target := range referencedNamespaces(value, aliases, ns) {
				add(TopologyEdge{Source: ns, Target: target, Type: EdgeConfig})
			}
		}
	}
}

func (d *Discoverer) scanServiceAnnotations(ctx context.Context, client kubernetes.Interface, ns string, aliases map[string]string, add func(TopologyEdge)) {
	svcs, err := client.CoreV1().Services(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return
	}
	for _, svc := range svcs.Items {
		for _, value := range svc.Annotations {
			for _, target := range referencedNamespaces(value, aliases, ns) {
				add(TopologyEdge{Source: ns, Target: target, Type: EdgeUpstream})
			}
		}
	}
}

func (d *Discoverer) scanEndpoints(ctx context.Context, client kubernetes.Interface, ns string, add func(TopologyEdge)) {
	endpoints, err := client.CoreV1().Endpoints(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return
	}
	for _, ep := range endpoints.Items {
		for _, subset := range ep.Subsets {
			var port int32
			if len(subset.Ports) > 0 {
				port = subset.Ports[0].Port
			}
			for _, addr := range subset.Addresses {
				if addr.TargetRef == nil || addr.TargetRef.Namespace == "" || addr.TargetRef.Namespace == ns {
					continue
				}
				add(TopologyEdge{Source: ns, Target: addr.TargetRef.Namespace, Type: EdgeEndpoint, Port: port})
			}
		}
	}
}

func (d *Discoverer) scanIngressAndExternal(ctx context.Context, client kubernetes.Interface, ns string, add func(TopologyEdge)) {
	svcs, err := client.CoreV1().Services(ns).List(ctx, metav1.ListOptions{})
	if err == nil {
		for _, svc := range svcs.Items {
			if svc.Spec.Type == "LoadBalancer" || svc.Spec.Type == "NodePort" {
				add(TopologyEdge{Source: ExternalNode, Target: ns, Type: EdgeIngress})
			}
		}
	}

	ingresses, err := client.NetworkingV1().Ingresses(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return
	}
	for _, ing := range ingresses.Items {
		add(TopologyEdge{Source: ExternalNode, Target: ns, Type: EdgeIngress, Port: 443})
		for _, rule := range ing.Spec.Rules {
			if rule.HTTP == nil {
				continue
			}
			for _, path := range rule.HTTP.Paths {
				if path.Backend.Service == nil {
					continue
				}
				add(TopologyEdge{Source: ns, Target: ns, Type: EdgeIngressBackend})
			}
		}
	}
}

// scanEgress adds an ns→external edge unless a NetworkPolicy of type
// Egress blocks external traffic: empty egress rules block everything; a
// rule allows external traffic if it has no `to` peers, or any peer is
// CIDR 0.0.0.0/0, or any peer lacks both a namespace and pod selector.
func (d *Discoverer) scanEgress(ctx context.Context, client kubernetes.Interface, ns string, add func(TopologyEdge)) {
	policies, err := client.NetworkingV1().NetworkPolicies(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		add(TopologyEdge{Source: ns, Target: ExternalNode, Type: EdgeEgress})
		return
	}

	var egressPolicies []networkingv1.NetworkPolicy
	for _, p := range policies.Items {
		for _, t := range p.Spec.PolicyTypes {
			if t == networkingv1.PolicyTypeEgress {
				egressPolicies = append(egressPolicies, p)
			}
		}
	}
	if len(egressPolicies) == 0 {
		add(TopologyEdge{Source: ns, Target: ExternalNode, Type: EdgeEgress})
		return
	}

	for _, p := range egressPolicies {
		if allowsExternal(p.Spec.Egress) {
			add(TopologyEdge{Source: ns, Target: ExternalNode, Type: EdgeEgress})
			return
		}
	}
}

func allowsExternal(rules []networkingv1.NetworkPolicyEgressRule) bool {
	if len(rules) == 0 {
		return false
	}
	for _, rule := range rules {
		if len(rule.To) == 0 {
			return true
		}
		for _, peer := range rule.To {
			if peer.IPBlock != nil && peer.IPBlock.CIDR == "0.0.0.0/0" {
				return true
			}
			if peer.NamespaceSelector == nil && peer.PodSelector == nil {
				return true
			}
		}
	}
	return false
}

// Package proxy resolves app names to live Kubernetes Service endpoints
// and reverse-proxies HTTP and WebSocket traffic to them.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ErrClusterUnavailable is returned by Resolve when the Kubernetes client
// itself could not be obtained, as distinct from the Service simply not
// existing. Callers map this to a 503 rather than a 404.
var ErrClusterUnavailable = errors.New("kubernetes cluster unavailable")

// ErrServiceNotFound is returned by Resolve when the cluster is reachable
// but no Service exists for the app.
var ErrServiceNotFound = errors.New("service not found")

// BasePathAnnotation is read off the target Service and stored on the
// cache entry, but — matching the upstream catalog's actual behavior,
// not its evident intent — it is never consulted when building the
// proxied request path. Components that care about base-path rewriting
// must do it themselves; the resolver only ever joins BaseURL with the
// incoming request path.
const BasePathAnnotation = "kubarr.io/base-path"

// Endpoint is a resolved proxy target for an app.
type Endpoint struct {
	BaseURL  string // e.g. http://sonarr.sonarr.svc.cluster.local:8989
	BasePath string
}

// Resolver looks up an app's Service endpoint, caching successful lookups
// in memory. There is no negative caching: a failed lookup is retried on
// the very next request.
type Resolver struct {
	k8s func() (kubernetes.Interface, error)

	mu    sync.RWMutex
	cache map[string]Endpoint
}

func NewResolver(k8s func() (kubernetes.Interface, error)) *Resolver {
	return &Resolver{
		k8s:   k8s,
		cache: make(map[string]Endpoint),
	}
}

// Resolve returns appName's proxy target, consulting the cache first.
func (r *Resolver) Resolve(ctx context.Context, appName string) (Endpoint, error) {
	r.mu.RLock()
	ep, ok := r.cache[appName]
	r.mu.RUnlock()
	if ok {
		return ep, nil
	}

	client, err := r.k8s()
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %w", ErrClusterUnavailable, err)
	}

	// Apps are deployed in a namespace named identically to the app.
	svc, err := client.CoreV1().Services(appName).Get(ctx, appName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return Endpoint{}, fmt.Errorf("%w: app %q: %w", ErrServiceNotFound, appName, err)
		}
		return Endpoint{}, fmt.Errorf("getting service for app %q: %w", appName, err)
	}

	port, err := firstPort(svc)
	if err != nil {
		return Endpoint{}, err
	}

	ep = Endpoint{
		BaseURL:  fmt.Sprintf("http://%s.%s.svc.cluster.local:%d", appName, appName, port),
		BasePath: svc.Annotations[BasePathAnnotation],
	}

	r.mu.Lock()
	r.cache[appName] = ep
	r.mu.Unlock()

	return ep, nil
}

// Invalidate drops a cached entry so the next request re-resolves against
// live Service state. Nothing in this repository calls it: removing or
// redeploying an app through pkg/helm leaves its cached entry in place.
func (r *Resolver) Invalidate(appName string) {
	r.mu.Lock()
	delete(r.cache, appName)
	r.mu.Unlock()
}

func firstPort(svc *corev1.Service) (int32, error) {
	if len(svc.Spec.Ports) == 0 {
		return 0, fmt.Errorf("service %s has no ports", svc.Name)
	}
	return svc.Spec.Ports[0].Port, nil
}

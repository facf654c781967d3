package platform

import (
	"sync"

	"k8s.io/client-go/kubernetes"
)

// K8sConnector lazily connects to the cluster and caches the client once
// it succeeds. Kubernetes may not be reachable yet when kubarr starts —
// e.g. during first-boot setup — so every caller goes through Get rather
// than assuming a client already exists.
type K8sConnector struct {
	kubeconfigPath string

	mu     sync.Mutex
	client *kubernetes.Clientset
}

func NewK8sConnector(kubeconfigPath string) *K8sConnector {
	return &K8sConnector{kubeconfigPath: kubeconfigPath}
}

// Get returns the cached client, connecting on first use (or retrying if
// the previous attempt failed).
func (c *K8sConnector) Get() (kubernetes.Interface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := NewK8sClient(c.kubeconfigPath)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

package platform

import (
	"fmt"
	"os"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// NewK8sClient builds a Kubernetes clientset, preferring in-cluster config
// (when running inside a pod) and falling back to a kubeconfig path. An
// empty kubeconfigPath with no in-cluster config available is an error:
// its caller (K8sConnector.Get) treats that as "not yet available" and
// tries again on the next call rather than failing startup outright.
func NewK8sClient(kubeconfigPath string) (*kubernetes.Clientset, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		if kubeconfigPath == "" {
			kubeconfigPath = os.Getenv("KUBECONFIG")
		}
		if kubeconfigPath == "" {
			return nil, fmt.Errorf("not running in-cluster and no kubeconfig path configured")
		}
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("loading kubeconfig from %s: %w", kubeconfigPath, err)
		}
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes clientset: %w", err)
	}
	return clientset, nil
}

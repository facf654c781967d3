// Package helm drives app installation through the helm CLI as a
// subprocess, matching how the catalog's chart-per-app install/remove
// flow has always worked: no in-process Helm SDK, just exec and wait.
package helm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Driver installs, removes, and health-checks apps via helm and the
// Kubernetes API. Every app is deployed into a namespace with the same
// name as the app.
type Driver struct {
	chartsDir string
	k8s       func() (kubernetes.Interface, error)
}

func NewDriver(chartsDir string, k8s func() (kubernetes.Interface, error)) *Driver {
	return &Driver{chartsDir: chartsDir, k8s: k8s}
}

// ChartPath returns the chart directory for appName, validating that it
// actually contains a Helm chart.
func (d *Driver) ChartPath(appName string) (string, error) {
	path := filepath.Join(d.chartsDir, appName)
	if _, err := os.Stat(filepath.Join(path, "Chart.yaml")); err != nil {
		return "", fmt.Errorf("no chart found for %q: %w", appName, err)
	}
	return path, nil
}

// Deploy runs `helm upgrade --install` for appName, creating its
// namespace if needed and applying the given set of --set overrides.
func (d *Driver) Deploy(ctx context.Context, appName string, values map[string]string) error {
	chartPath, err := d.ChartPath(appName)
	if err != nil {
		return err
	}

	args := []string{
		"upgrade", "--install", appName, chartPath,
		"-n", appName, "--create-namespace",
	}
	for k, v := range values {
		args = append(args, "--set", fmt.Sprintf("%s=%s", k, v))
	}

	cmd := exec.CommandContext(ctx, "helm", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("helm upgrade --install %s: %w: %s", appName, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Remove uninstalls the release and deletes its namespace. Both steps
// tolerate "already gone" errors: a remove that runs twice, or against a
// partially-deployed app, still succeeds.
func (d *Driver) Remove(ctx context.Context, appName string) error {
	uninstall := exec.CommandContext(ctx, "helm", "uninstall", appName, "-n", appName)
	_, _ = uninstall.CombinedOutput()

	client, err := d.k8s()
	if err != nil {
		return fmt.Errorf("getting kubernetes client: %w", err)
	}
	err = client.CoreV1().Namespaces().Delete(ctx, appName, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting namespace %s: %w", appName, err)
	}
	return nil
}

// DeploymentHealth reports whether a Deployment's ready and available
// replica counts meet its desired replica count (which defaults to 1
// when unset on the spec).
type DeploymentHealth struct {
	Name               string `json:"name"`
	DesiredReplicas    int32  `json:"desired_replicas"`
	ReadyReplicas      int32  `json:"ready_replicas"`
	AvailableReplicas  int32  `json:"available_replicas"`
	Healthy            bool   `json:"healthy"`
}

// HealthReport is the namespace-level aggregate returned by CheckHealth:
// healthy only when every deployment in the namespace is healthy.
type HealthReport struct {
	Status      string             `json:"status"`
	Healthy     bool               `json:"healthy"`
	Deployments []DeploymentHealth `json:"deployments"`
}

func (d *Driver) CheckHealth(ctx context.Context, appName string) (*HealthReport, error) {
	client, err := d.k8s()
	if err != nil {
		return nil, fmt.Errorf("getting kubernetes client: %w", err)
	}

	deployments, err := client.AppsV1().Deployments(appName).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing deployments in %s: %w", appName, err)
	}

	results := make([]DeploymentHealth, 0, len(deployments.Items))
	healthy := true
	for _, dep := range deployments.Items {
		h := deploymentHealth(dep)
		results = append(results, h)
		healthy = healthy && h.Healthy
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	return &HealthReport{Status: status, Healthy: healthy, Deployments: results}, nil
}

func deploymentHealth(dep appsv1.Deployment) DeploymentHealth {
	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	ready := dep.Status.ReadyReplicas
	available := dep.Status.AvailableReplicas
	return DeploymentHealth{
		Name:              dep.Name,
		DesiredReplicas:   desired,
		ReadyReplicas:     ready,
		AvailableReplicas: available,
		Healthy:           ready >= desired && available >= desired,
	}
}

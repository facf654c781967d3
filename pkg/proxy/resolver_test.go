package proxy

import (
	"context"
	"errors"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"
)

func TestResolveClusterUnavailable(t *testing.T) {
	r := NewResolver(func() (kubernetes.Interface, error) {
		return nil, errors.New("no kubeconfig")
	})

	_, err := r.Resolve(context.Background(), "sonarr")
	if !errors.Is(err, ErrClusterUnavailable) {
		t.Fatalf("Resolve() error = %v, want ErrClusterUnavailable", err)
	}
}

func TestResolveServiceNotFound(t *testing.T) {
	client := fake.NewSimpleClientset()
	r := NewResolver(func() (kubernetes.Interface, error) { return client, nil })

	_, err := r.Resolve(context.Background(), "sonarr")
	if !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrServiceNotFound", err)
	}
}

func TestResolveSuccess(t *testing.T) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: "sonarr", Namespace: "sonarr"},
		Spec:       corev1.ServiceSpec{Ports: []corev1.ServicePort{{Port: 8989}}},
	}
	client := fake.NewSimpleClientset(svc)
	r := NewResolver(func() (kubernetes.Interface, error) { return client, nil })

	ep, err := r.Resolve(context.Background(), "sonarr")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := "http://sonarr.sonarr.svc.cluster.local:8989"
	if ep.BaseURL != want {
		t.Errorf("BaseURL = %q, want %q", ep.BaseURL, want)
	}
}

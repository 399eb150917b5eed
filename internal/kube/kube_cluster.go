package kube

import (
	"context"
	"fmt"
	"time"

	"opsflow/internal/config"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// requestTimeout bounds every API call made by the integration.
const requestTimeout = 15 * time.Second

// GetNodeStatus retrieves the number of ready and total nodes in a cluster.
func GetNodeStatus(ctx context.Context, clientset kubernetes.Interface) (readyNodes int, totalNodes int, err error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	nodeList, errList := clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if errList != nil {
		return 0, 0, fmt.Errorf("failed to list nodes: %w", errList)
	}

	totalNodes = len(nodeList.Items)
	for _, node := range nodeList.Items {
		for _, condition := range node.Status.Conditions {
			if condition.Type == corev1.NodeReady && condition.Status == corev1.ConditionTrue {
				readyNodes++
				break
			}
		}
	}
	return readyNodes, totalNodes, nil
}

// NewClientset creates a Kubernetes clientset from cfg. An empty Kubeconfig
// uses the default loading rules and an empty Context the current context.
func NewClientset(cfg config.KubernetesConfig) (kubernetes.Interface, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.Kubeconfig != "" {
		loadingRules.ExplicitPath = cfg.Kubeconfig
	}
	configOverrides := &clientcmd.ConfigOverrides{CurrentContext: cfg.Context}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, configOverrides)

	restConfig, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get REST config for context %q: %w", cfg.Context, err)
	}
	restConfig.Timeout = requestTimeout

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset for context %q: %w", cfg.Context, err)
	}

	return clientset, nil
}

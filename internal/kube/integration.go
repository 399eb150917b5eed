package kube

import (
	"context"
	"fmt"
	"math"
	"time"

	"opsflow/internal/capability"
	"opsflow/internal/config"
	"opsflow/pkg/logging"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/util/retry"
)

// IntegrationID is the registry key of the Kubernetes integration.
const IntegrationID = "kubernetes"

// RestartedAtAnnotation is stamped on the pod template by restart_deployment.
const RestartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

// Integration exposes cluster operations as workflow actions.
type Integration struct {
	clientset kubernetes.Interface
	namespace string
	now       func() time.Time
}

// New creates the integration over clientset. A nil clientset yields an
// unconfigured integration.
func New(clientset kubernetes.Interface, namespace string) *Integration {
	if namespace == "" {
		namespace = metav1.NamespaceDefault
	}
	return &Integration{
		clientset: clientset,
		namespace: namespace,
		now:       time.Now,
	}
}

// NewFromConfig builds the clientset when the integration is enabled.
// A disabled integration is returned unconfigured rather than as an error.
func NewFromConfig(cfg config.KubernetesConfig) (*Integration, error) {
	if !cfg.Enabled {
		logging.Debug("Kubernetes", "Integration disabled in configuration")
		return New(nil, cfg.Namespace), nil
	}
	clientset, err := NewClientset(cfg)
	if err != nil {
		return nil, err
	}
	return New(clientset, cfg.Namespace), nil
}

func (i *Integration) ID() string { return IntegrationID }

func (i *Integration) IsConfigured() bool { return i.clientset != nil }

// HealthCheck reports the node readiness of the cluster.
func (i *Integration) HealthCheck(ctx context.Context) capability.HealthStatus {
	start := time.Now()
	ready, total, err := GetNodeStatus(ctx, i.clientset)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return capability.HealthStatus{Healthy: false, Message: err.Error(), LatencyMs: latency}
	}
	return capability.HealthStatus{
		Healthy:   true,
		Message:   fmt.Sprintf("%d/%d nodes ready", ready, total),
		LatencyMs: latency,
	}
}

func (i *Integration) Actions() map[string]capability.ActionHandler {
	return map[string]capability.ActionHandler{
		"list_pods":          i.listPods,
		"get_deployment":     i.getDeployment,
		"scale_deployment":   i.scaleDeployment,
		"restart_deployment": i.restartDeployment,
	}
}

func (i *Integration) namespaceFor(p capability.Params) string {
	return p.StringOr("namespace", i.namespace)
}

func (i *Integration) listPods(ctx context.Context, p capability.Params) (capability.IntegrationResult, error) {
	namespace := i.namespaceFor(p)
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	podList, err := i.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: p.StringOr("labelSelector", ""),
	})
	if err != nil {
		return capability.IntegrationResult{}, fmt.Errorf("failed to list pods in %s: %w", namespace, err)
	}

	readyOnly := p.BoolOr("readyOnly", false)
	limit := p.IntOr("limit", 0)

	pods := make([]interface{}, 0, len(podList.Items))
	ready, matched := 0, 0
	for _, pod := range podList.Items {
		podReady := isPodReady(&pod)
		if readyOnly && !podReady {
			continue
		}
		matched++
		if limit > 0 && len(pods) >= limit {
			continue
		}
		if podReady {
			ready++
		}
		pods = append(pods, map[string]interface{}{
			"name":  pod.Name,
			"phase": string(pod.Status.Phase),
			"ready": podReady,
		})
	}

	return capability.Success(
		fmt.Sprintf("Found %d pods in %s (%d ready)", len(pods), namespace, ready),
		map[string]interface{}{
			"namespace": namespace,
			"count":     len(pods),
			"matched":   matched,
			"ready":     ready,
			"pods":      pods,
		},
	), nil
}

func (i *Integration) getDeployment(ctx context.Context, p capability.Params) (capability.IntegrationResult, error) {
	name, err := p.RequiredString("name")
	if err != nil {
		return capability.IntegrationResult{}, err
	}
	namespace := i.namespaceFor(p)
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	deployment, err := i.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return capability.IntegrationResult{}, fmt.Errorf("failed to get deployment %s/%s: %w", namespace, name, err)
	}

	return capability.Success(
		fmt.Sprintf("Deployment %s/%s has %d/%d replicas ready", namespace, name,
			deployment.Status.ReadyReplicas, desiredReplicas(deployment)),
		deploymentData(deployment),
	), nil
}

func (i *Integration) scaleDeployment(ctx context.Context, p capability.Params) (capability.IntegrationResult, error) {
	name, err := p.RequiredString("name")
	if err != nil {
		return capability.IntegrationResult{}, err
	}
	replicas, ok := p.Int64("replicas")
	if !ok || replicas < 0 || replicas > math.MaxInt32 {
		return capability.IntegrationResult{}, fmt.Errorf("parameter replicas must be an integer between 0 and %d", math.MaxInt32)
	}
	namespace := i.namespaceFor(p)
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var previous int32
	var updated *appsv1.Deployment
	err = retry.RetryOnConflict(retry.DefaultRetry, func() error {
		deployment, err := i.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		previous = desiredReplicas(deployment)
		target := int32(replicas)
		deployment.Spec.Replicas = &target
		updated, err = i.clientset.AppsV1().Deployments(namespace).Update(ctx, deployment, metav1.UpdateOptions{})
		return err
	})
	if err != nil {
		return capability.IntegrationResult{}, fmt.Errorf("failed to scale deployment %s/%s: %w", namespace, name, err)
	}

	logging.Info("Kubernetes", "Scaled deployment %s/%s from %d to %d replicas", namespace, name, previous, replicas)
	data := deploymentData(updated)
	data["previousReplicas"] = int(previous)
	return capability.Success(
		fmt.Sprintf("Scaled deployment %s/%s from %d to %d replicas", namespace, name, previous, replicas),
		data,
	), nil
}

func (i *Integration) restartDeployment(ctx context.Context, p capability.Params) (capability.IntegrationResult, error) {
	name, err := p.RequiredString("name")
	if err != nil {
		return capability.IntegrationResult{}, err
	}
	namespace := i.namespaceFor(p)
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	restartedAt := i.now().UTC().Format(time.RFC3339)
	err = retry.RetryOnConflict(retry.DefaultRetry, func() error {
		deployment, err := i.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		if deployment.Spec.Template.Annotations == nil {
			deployment.Spec.Template.Annotations = make(map[string]string)
		}
		deployment.Spec.Template.Annotations[RestartedAtAnnotation] = restartedAt
		_, err = i.clientset.AppsV1().Deployments(namespace).Update(ctx, deployment, metav1.UpdateOptions{})
		return err
	})
	if err != nil {
		return capability.IntegrationResult{}, fmt.Errorf("failed to restart deployment %s/%s: %w", namespace, name, err)
	}

	logging.Info("Kubernetes", "Restarted deployment %s/%s", namespace, name)
	return capability.Success(
		fmt.Sprintf("Restarted deployment %s/%s", namespace, name),
		map[string]interface{}{
			"name":        name,
			"namespace":   namespace,
			"restartedAt": restartedAt,
		},
	), nil
}

func desiredReplicas(deployment *appsv1.Deployment) int32 {
	if deployment.Spec.Replicas == nil {
		return 1
	}
	return *deployment.Spec.Replicas
}

func deploymentData(deployment *appsv1.Deployment) map[string]interface{} {
	images := make([]interface{}, 0, len(deployment.Spec.Template.Spec.Containers))
	for _, container := range deployment.Spec.Template.Spec.Containers {
		images = append(images, container.Image)
	}
	return map[string]interface{}{
		"name":              deployment.Name,
		"namespace":         deployment.Namespace,
		"replicas":          int(desiredReplicas(deployment)),
		"readyReplicas":     int(deployment.Status.ReadyReplicas),
		"availableReplicas": int(deployment.Status.AvailableReplicas),
		"images":            images,
	}
}

func isPodReady(pod *corev1.Pod) bool {
	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady {
			return condition.Status == corev1.ConditionTrue
		}
	}
	return false
}

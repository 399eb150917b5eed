// Package kube implements the "kubernetes" integration.
//
// The integration drives a cluster through client-go and exposes these actions:
//
//   - list_pods: pods in a namespace, optionally filtered by labelSelector
//     and readyOnly, at most limit of them
//   - get_deployment: replica counts and container images of a deployment
//   - scale_deployment: set spec.replicas of a deployment
//   - restart_deployment: trigger a rolling restart by stamping the pod template
//
// Every action accepts an optional "namespace" parameter that defaults to the
// configured namespace.
//
// # Clientset
//
// NewClientset builds a clientset from kubeconfig using the default loading
// rules, optionally pinned to a context. Tests hand a fake clientset to New:
//
//	clientset := fake.NewSimpleClientset(deployment)
//	integration := kube.New(clientset, "default")
//
// # Health
//
// HealthCheck lists the cluster nodes and reports how many are Ready. An
// integration built without a clientset reports itself unconfigured.
package kube

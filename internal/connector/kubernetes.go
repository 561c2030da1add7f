package connector

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/amsen20/argos/internal/config"
	"github.com/amsen20/argos/internal/model"
	"github.com/amsen20/argos/internal/utils"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	// ServiceLabel on a deployment carries the microservice id it runs.
	ServiceLabel  = "argos/microservice-id"
	HostnameLabel = "kubernetes.io/hostname"
)

// KubeConnector mirrors migrations onto a Kubernetes cluster. The seed
// and the mobility come from a trace, nodes and deployments are matched
// to edge servers and microservices through labels.
type KubeConnector struct {
	// Kubernetes official library client for
	// contacting API-server.
	clientset kubernetes.Interface

	namespace string
	nodeLabel string

	trace *TraceConnector

	// Mappings for getting node and
	// deployment names easily.
	serverIdToNode        map[int]string
	serviceIdToDeployment map[int]string
}

// NewKubeConnector uses kubeConfig when given, the in-cluster config otherwise.
func NewKubeConnector(kubeConfig string, trace *TraceConnector) (*KubeConnector, error) {
	var restConfig *rest.Config
	var err error

	if kubeConfig != "" {
		restConfig, err = clientcmd.BuildConfigFromFlags("", kubeConfig)
	} else {
		restConfig, err = rest.InClusterConfig()
	}
	if err != nil {
		log.Err(err).Send()

		return nil, fmt.Errorf("can't connect to kubernetes cluster: %w", err)
	}

	clientSet, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Err(err).Send()

		return nil, fmt.Errorf("could not init clients: %w", err)
	}

	return NewKubeConnectorForClient(
		clientSet,
		config.SchedulerGeneralConfig.Namespace,
		config.SchedulerGeneralConfig.NodeLabel,
		trace,
	), nil
}

func NewKubeConnectorForClient(clientset kubernetes.Interface, namespace, nodeLabel string, trace *TraceConnector) *KubeConnector {
	return &KubeConnector{
		clientset:             clientset,
		namespace:             namespace,
		nodeLabel:             nodeLabel,
		trace:                 trace,
		serverIdToNode:        make(map[int]string),
		serviceIdToDeployment: make(map[int]string),
	}
}

func (kc *KubeConnector) LoadSnapshot() (*model.Snapshot, error) {
	snapshot, err := kc.trace.LoadSnapshot()
	if err != nil {
		return nil, err
	}

	if err := kc.findNodes(snapshot); err != nil {
		return nil, err
	}

	if err := kc.findDeployments(snapshot); err != nil {
		return nil, err
	}

	return snapshot, nil
}

func (kc *KubeConnector) findNodes(snapshot *model.Snapshot) error {
	log.Info().Msg("finding nodes...")

	nodeList, err := kc.clientset.CoreV1().Nodes().List(context.Background(), metav1.ListOptions{})
	if err != nil {
		log.Err(err).Send()

		return fmt.Errorf("could not list nodes: %w", err)
	}

	for _, node := range nodeList.Items {
		nodeName := node.GetObjectMeta().GetName()

		value, ok := node.GetObjectMeta().GetLabels()[kc.nodeLabel]
		if !ok {
			continue
		}

		serverId, err := strconv.Atoi(value)
		if err != nil {
			log.Warn().Msgf("node %s has a malformed %s label %q, ignoring it", nodeName, kc.nodeLabel, value)
			continue
		}

		server, ok := snapshot.Server(serverId)
		if !ok {
			log.Warn().Msgf("node %s is labeled as unknown server %d, ignoring it", nodeName, serverId)
			continue
		}

		// The node's allocatable resources bound the server's capacity.
		allocatable := model.NewResources(
			node.Status.Allocatable.Cpu().AsApproximateFloat64(),
			node.Status.Allocatable.Memory().AsApproximateFloat64()/config.MB,
		)
		if utils.LThan(allocatable, snapshot.ServerResourcesUsed[server.Id]) {
			return fmt.Errorf("node %s can not hold what server %d already hosts", nodeName, server.Id)
		}
		if utils.LThan(allocatable, server.Capacity) {
			capacity := model.NewResources(
				math.Min(allocatable.AtVec(model.CPU), server.Capacity.AtVec(model.CPU)),
				math.Min(allocatable.AtVec(model.MEMORY), server.Capacity.AtVec(model.MEMORY)),
			)
			log.Warn().Msgf("node %s shrinks server %d to %s", nodeName, server.Id, utils.ToString(capacity))
			server.Capacity = capacity
		}

		log.Info().Msgf("found node %s for server %d", nodeName, server.Id)
		kc.serverIdToNode[server.Id] = nodeName
	}

	log.Info().Msg("nodes found")

	return nil
}

func (kc *KubeConnector) findDeployments(snapshot *model.Snapshot) error {
	log.Info().Msg("finding deployments...")

	serviceIds := make(map[int]bool)
	for _, service := range snapshot.Services {
		serviceIds[service.Id] = true
	}

	deploymentList, err := kc.clientset.AppsV1().Deployments(kc.namespace).List(context.Background(), metav1.ListOptions{
		LabelSelector: ServiceLabel,
	})
	if err != nil {
		log.Err(err).Send()

		return fmt.Errorf("could not list deployments: %w", err)
	}

	for _, deployment := range deploymentList.Items {
		value := deployment.GetObjectMeta().GetLabels()[ServiceLabel]
		serviceId, err := strconv.Atoi(value)
		if err != nil || !serviceIds[serviceId] {
			log.Warn().Msgf("deployment %s is not related to any microservice", deployment.Name)
			continue
		}

		log.Info().Msgf("found deployment %s for microservice %d", deployment.Name, serviceId)
		kc.serviceIdToDeployment[serviceId] = deployment.Name
	}

	log.Info().Msg("deployments found")

	return nil
}

func (kc *KubeConnector) WatchMobilityEvents(ctx context.Context) (<-chan *model.MobilityBatch, error) {
	return kc.trace.WatchMobilityEvents(ctx)
}

// ApplyPlacement pins the microservice's deployment to the target node,
// Kubernetes rolls the pods over.
func (kc *KubeConnector) ApplyPlacement(decision *model.PlacementDecision) error {
	if err := kc.trace.ApplyPlacement(decision); err != nil {
		return err
	}

	if !decision.Migrated {
		return nil
	}

	nodeName, ok := kc.serverIdToNode[decision.TargetServerId]
	if !ok {
		return fmt.Errorf("server %d is not mapped to a known node", decision.TargetServerId)
	}

	deploymentName, ok := kc.serviceIdToDeployment[decision.MicroserviceId]
	if !ok {
		return fmt.Errorf("microservice %d is not mapped to a known deployment", decision.MicroserviceId)
	}

	log.Info().Msgf("moving deployment %s to node %s", deploymentName, nodeName)

	deployments := kc.clientset.AppsV1().Deployments(kc.namespace)
	deployment, err := deployments.Get(context.Background(), deploymentName, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("could not get deployment %s: %w", deploymentName, err)
	}

	if deployment.Spec.Template.Spec.NodeSelector == nil {
		deployment.Spec.Template.Spec.NodeSelector = make(map[string]string)
	}
	deployment.Spec.Template.Spec.NodeSelector[HostnameLabel] = nodeName

	if _, err := deployments.Update(context.Background(), deployment, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("could not update deployment %s: %w", deploymentName, err)
	}

	return nil
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/gin-gonic/contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scusemua/notebook-kernel/common/jupyter/server"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
	"github.com/scusemua/notebook-kernel/common/utils"
)

const (
	Namespace = "notebook_kernel"

	MetricsPath = "/prometheus"
)

var (
	ErrKernelPrometheusManagerAlreadyRunning = errors.New("KernelPrometheusManager is already running")
	ErrKernelPrometheusManagerNotRunning     = errors.New("KernelPrometheusManager is not running")

	_ server.MessagingMetricsProvider = (*KernelPrometheusManager)(nil)
)

// KernelPrometheusManager records the kernel's message traffic and serves it to Prometheus over HTTP.
//
// Observations may be recorded whether or not the HTTP server is running.
type KernelPrometheusManager struct {
	log        logger.Logger
	kernelName string

	// serving indicates whether the manager has been started and is serving requests.
	serving    bool
	mu         sync.Mutex
	port       int
	listener   net.Listener
	engine     *gin.Engine
	httpServer *http.Server

	registry          *prometheus.Registry
	prometheusHandler http.Handler

	// MessagesReceivedCounterVec counts multipart messages read from each socket, before they are decoded.
	MessagesReceivedCounterVec *prometheus.CounterVec

	// MessagesRejectedCounterVec counts messages dropped because they were malformed or not authentic.
	MessagesRejectedCounterVec *prometheus.CounterVec

	// MessagesSentCounterVec counts replies and broadcasts by socket and Jupyter message type.
	MessagesSentCounterVec *prometheus.CounterVec

	// HandlerLatencyMicrosecondsVec is the time between the busy and idle broadcasts of a request.
	HandlerLatencyMicrosecondsVec *prometheus.HistogramVec
}

// NewKernelPrometheusManager creates a manager whose metrics carry the given kernel name.
// A port of 0 serves on an ephemeral port.
func NewKernelPrometheusManager(port int, kernelName string) *KernelPrometheusManager {
	manager := &KernelPrometheusManager{
		port:       port,
		kernelName: kernelName,
		registry:   prometheus.NewRegistry(),
	}
	config.InitLogger(&manager.log, manager)

	manager.prometheusHandler = promhttp.HandlerFor(manager.registry, promhttp.HandlerOpts{})
	manager.initMetrics()

	return manager
}

func (m *KernelPrometheusManager) initMetrics() {
	constLabels := prometheus.Labels{"kernel_name": m.kernelName}

	m.MessagesReceivedCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   Namespace,
		Name:        "messages_received_total",
		Help:        "Multipart messages received, by socket",
		ConstLabels: constLabels,
	}, []string{"socket_type"})
	m.MessagesRejectedCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   Namespace,
		Name:        "messages_rejected_total",
		Help:        "Messages dropped before dispatch, by socket and reason",
		ConstLabels: constLabels,
	}, []string{"socket_type", "reason"})
	m.MessagesSentCounterVec = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   Namespace,
		Name:        "messages_sent_total",
		Help:        "Replies and broadcasts sent, by socket and Jupyter message type",
		ConstLabels: constLabels,
	}, []string{"socket_type", "jupyter_message_type"})
	m.HandlerLatencyMicrosecondsVec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   Namespace,
		Name:        "handler_latency_microseconds",
		Help:        "Time spent handling a request, from the busy broadcast to the idle broadcast",
		ConstLabels: constLabels,
		Buckets:     prometheus.ExponentialBuckets(100, 4, 10),
	}, []string{"socket_type", "jupyter_message_type"})

	m.registry.MustRegister(
		m.MessagesReceivedCounterVec,
		m.MessagesRejectedCounterVec,
		m.MessagesSentCounterVec,
		m.HandlerLatencyMicrosecondsVec,
	)
}

func (m *KernelPrometheusManager) ReceivedMessage(socketType types.MessageType) {
	m.MessagesReceivedCounterVec.With(prometheus.Labels{"socket_type": socketType.String()}).Inc()
}

func (m *KernelPrometheusManager) RejectedMessage(socketType types.MessageType, reason string) {
	m.MessagesRejectedCounterVec.With(prometheus.Labels{"socket_type": socketType.String(), "reason": reason}).Inc()
}

func (m *KernelPrometheusManager) SentMessage(socketType types.MessageType, jupyterMessageType string) {
	m.MessagesSentCounterVec.With(prometheus.Labels{
		"socket_type":          socketType.String(),
		"jupyter_message_type": jupyterMessageType,
	}).Inc()
}

func (m *KernelPrometheusManager) AddHandlerLatencyObservation(latency time.Duration, socketType types.MessageType, jupyterMessageType string) {
	m.HandlerLatencyMicrosecondsVec.With(prometheus.Labels{
		"socket_type":          socketType.String(),
		"jupyter_message_type": jupyterMessageType,
	}).Observe(float64(latency.Microseconds()))
}

// Registry returns the registry that holds the kernel's metrics.
func (m *KernelPrometheusManager) Registry() *prometheus.Registry {
	return m.registry
}

// Start begins serving the metrics via an HTTP endpoint.
func (m *KernelPrometheusManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.serving {
		m.log.Warn("KernelPrometheusManager for kernel %s is already running.", m.kernelName)
		return ErrKernelPrometheusManagerAlreadyRunning
	}

	if err := m.initializeHttpServer(); err != nil {
		return err
	}

	m.serving = true
	return nil
}

// IsRunning returns true if the KernelPrometheusManager has been started and is serving metrics.
func (m *KernelPrometheusManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.serving
}

// Addr returns the address the HTTP server listens on, or an empty string if it is not running.
func (m *KernelPrometheusManager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.serving {
		return ""
	}
	return m.listener.Addr().String()
}

// Stop shuts down the HTTP server.
func (m *KernelPrometheusManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.serving {
		m.log.Warn("KernelPrometheusManager for kernel %s is not running.", m.kernelName)
		return ErrKernelPrometheusManagerNotRunning
	}

	m.serving = false
	if err := m.httpServer.Shutdown(context.Background()); err != nil {
		m.log.Error("Failed to cleanly shutdown the HTTP server: %v", err)
		return err
	}

	return nil
}

func (m *KernelPrometheusManager) HandleRequest(c *gin.Context) {
	m.prometheusHandler.ServeHTTP(c.Writer, c.Request)
}

func (m *KernelPrometheusManager) initializeHttpServer() error {
	gin.SetMode(gin.ReleaseMode)
	m.engine = gin.New()

	m.engine.Use(gin.Recovery())
	m.engine.Use(cors.Default())

	m.engine.GET(MetricsPath, m.HandleRequest)

	address := fmt.Sprintf("0.0.0.0:%d", m.port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		m.log.Error(utils.RedStyle.Render("HTTP Server failed to listen on '%s'. Error: %v"), address, err)
		return err
	}

	m.listener = listener
	m.httpServer = &http.Server{
		Handler: m.engine,
	}

	go func() {
		m.log.Debug("Serving Prometheus metrics at %s%s", listener.Addr(), MetricsPath)
		if err := m.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error(utils.RedStyle.Render("HTTP Server stopped serving on '%s'. Error: %v"), listener.Addr(), err)
		}
	}()

	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Scusemua/go-utils/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/scusemua/notebook-kernel/common/execution"
	"github.com/scusemua/notebook-kernel/common/jupyter"
	"github.com/scusemua/notebook-kernel/common/jupyter/kernel"
	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/jupyter/router"
	"github.com/scusemua/notebook-kernel/common/jupyter/server"
	"github.com/scusemua/notebook-kernel/common/metrics"
	"github.com/scusemua/notebook-kernel/common/utils"
	"github.com/scusemua/notebook-kernel/kernel/domain"
)

var (
	options      = domain.KernelOptions{}
	globalLogger = config.GetLogger("")
	sig          = make(chan os.Signal, 1)
)

func init() {
	lipgloss.SetColorProfile(termenv.ANSI256)

	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
}

// ValidateOptions ensures that the options/configuration is valid and returns the path of the connection file.
func ValidateOptions() string {
	flags, err := config.ValidateOptions(&options)
	if errors.Is(err, config.ErrPrintUsage) {
		fmt.Fprintf(flags.Output(), "Usage: %s [options] <connection file>\n", os.Args[0])
		flags.PrintDefaults()
		os.Exit(0)
	} else if err != nil {
		log.Fatal(err)
	}

	if flags.NArg() != 1 {
		fmt.Fprintf(flags.Output(), "Usage: %s [options] <connection file>\n", os.Args[0])
		flags.PrintDefaults()
		os.Exit(2)
	}

	return flags.Arg(0)
}

func main() {
	connectionFile := ValidateOptions()

	// Logger levels are only known after the options have been validated.
	globalLogger = config.GetLogger("")

	if options.PrettyPrintOptions {
		globalLogger.Info("Starting kernel with the following options:\n%s\n", options.PrettyString(2))
	}

	connectionInfo, err := jupyter.LoadConnectionInfo(connectionFile)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	globalLogger.Info("Loaded connection file \"%s\": %v", connectionFile, connectionInfo)

	variant, err := options.ResolveVariant(connectionInfo.KernelName)
	if err != nil {
		log.Fatal(err)
	}
	if connectionInfo.KernelName == "" {
		connectionInfo.KernelName = variant.Name
	}

	codec, err := messaging.NewCodec(connectionInfo.SignatureScheme, connectionInfo.Key)
	if err != nil {
		log.Fatal(err)
	}
	if !codec.Signed() {
		globalLogger.Warn(utils.OrangeStyle.Render("The connection file has no key. Messages will not be authenticated."))
	}

	var (
		metricsProvider server.MessagingMetricsProvider
		prometheus      *metrics.KernelPrometheusManager
	)
	if options.PrometheusPort > 0 {
		prometheus = metrics.NewKernelPrometheusManager(options.PrometheusPort, variant.Name)
		if err = prometheus.Start(); err != nil {
			log.Fatalf("Failed to start Prometheus metrics server: %v", err)
		}
		metricsProvider = prometheus
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := execution.NewEngine(variant, execution.NewProcessRunner("", options.WorkDir))
	dispatcher := kernel.NewDispatcher(ctx, codec, engine, nil, metricsProvider)
	kernelRouter := router.New(ctx, connectionInfo, dispatcher, metricsProvider)
	dispatcher.SetChannels(kernelRouter)

	if err = kernelRouter.Bind(); err != nil {
		var bindErr *jupyter.BindError
		if errors.As(err, &bindErr) {
			globalLogger.Error(utils.RedStyle.Render("Could not bind %s channel (%s): %v"), bindErr.Channel, bindErr.Endpoint, bindErr.Err)
		}
		_ = kernelRouter.Close()
		log.Fatal(err)
	}

	if err = kernelRouter.Serve(); err != nil {
		log.Fatal(err)
	}

	if err = dispatcher.PublishStarting(); err != nil {
		globalLogger.Warn("Failed to publish starting status: %v", err)
	}

	globalLogger.Info(utils.GreenStyle.Render("%s kernel is running (session=%s)."), variant.DisplayName, dispatcher.Session())

	exitCode := 0
	for running := true; running; {
		select {
		case s := <-sig:
			if s == syscall.SIGINT {
				globalLogger.Info("Received interrupt signal. Interrupting in-flight executions.")
				engine.Interrupt()
				continue
			}

			globalLogger.Info("Received %v. Shutting down.", s)
			engine.Interrupt()
			exitCode = 1
			running = false
		case <-dispatcher.Done():
			globalLogger.Info("Kernel was asked to shut down.")
			running = false
		}
	}

	cancel()
	if err = kernelRouter.Close(); err != nil {
		globalLogger.Warn("Error while closing sockets: %v", err)
	}
	if prometheus != nil {
		_ = prometheus.Stop()
	}

	os.Exit(exitCode)
}

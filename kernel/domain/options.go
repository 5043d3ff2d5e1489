package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Scusemua/go-utils/config"

	"github.com/scusemua/notebook-kernel/common/execution"
)

const (
	// DefaultKernelName is used when neither the -kernel flag nor the connection file names a kernel.
	DefaultKernelName = "python"
)

type KernelOptions struct {
	config.LoggerOptions `yaml:",inline" json:"logger_options"`

	KernelName         string `name:"kernel"          json:"kernel"          yaml:"kernel"          description:"Kernel variant to run (python, bash, javascript, typescript). Overrides the kernel_name of the connection file."`
	Interpreter        string `name:"interpreter"     json:"interpreter"     yaml:"interpreter"     description:"Command used to run cells. Defaults to the interpreter of the kernel variant."`
	WorkDir            string `name:"workdir"         json:"workdir"         yaml:"workdir"         description:"Working directory of the interpreter."`
	PrometheusPort     int    `name:"prometheus-port" json:"prometheus-port" yaml:"prometheus-port" description:"Port on which to serve Prometheus metrics. Metrics are not served if the port is 0."`
	PrettyPrintOptions bool   `name:"pretty_print_options" json:"pretty_print_options" yaml:"pretty_print_options" description:"Print the options as indented JSON at startup."`
}

// Validate ensures that the kernel variant, if given, is known.
func (o *KernelOptions) Validate() error {
	if o.PrometheusPort < 0 || o.PrometheusPort > 65535 {
		return fmt.Errorf("invalid prometheus-port %d", o.PrometheusPort)
	}

	if o.KernelName == "" {
		return nil
	}

	variant, err := execution.LookupVariant(o.KernelName)
	if err != nil {
		return err
	}

	o.KernelName = variant.Name
	return nil
}

// ResolveVariant picks the kernel variant from the options, falling back to the kernel name of the connection file.
// The interpreter override, if any, is applied to the returned variant.
func (o *KernelOptions) ResolveVariant(connectionKernelName string) (*execution.Variant, error) {
	name := o.KernelName
	if name == "" {
		name = connectionKernelName
	}
	if name == "" {
		name = DefaultKernelName
	}

	variant, err := execution.LookupVariant(name)
	if err != nil {
		return nil, err
	}

	if o.Interpreter != "" {
		variant.Interpreter = o.Interpreter
	}

	return variant, nil
}

func (o *KernelOptions) String() string {
	m, err := json.Marshal(o)
	if err != nil {
		panic(err)
	}

	return string(m)
}

// PrettyString is the same as String, except that PrettyString calls json.MarshalIndent instead of json.Marshal.
func (o *KernelOptions) PrettyString(indentSize int) string {
	m, err := json.MarshalIndent(o, "", strings.Repeat(" ", indentSize))
	if err != nil {
		panic(err)
	}

	return string(m)
}

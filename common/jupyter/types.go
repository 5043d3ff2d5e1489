package jupyter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const (
	TransportTCP = "tcp"
	TransportIPC = "ipc"

	DefaultSignatureScheme = "hmac-sha256"

	// RedactedKey replaces the signing key whenever connection info is printed.
	RedactedKey = "<redacted>"
)

// ConnectionInfo stores the contents of the kernel connection file.
// It is loaded once at startup and never modified afterwards.
type ConnectionInfo struct {
	IP              string `json:"ip"`
	ControlPort     int    `json:"control_port"`
	ShellPort       int    `json:"shell_port"`
	StdinPort       int    `json:"stdin_port"`
	HBPort          int    `json:"hb_port"`
	IOPubPort       int    `json:"iopub_port"`
	Transport       string `json:"transport"`
	SignatureScheme string `json:"signature_scheme"`
	Key             string `json:"key"`
	KernelName      string `json:"kernel_name"`
}

// LoadConnectionInfo reads and validates the connection file at the given path.
func LoadConnectionInfo(path string) (*ConnectionInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read connection file \"%s\"", path)
	}

	var info ConnectionInfo
	if err = json.Unmarshal(data, &info); err != nil {
		return nil, errors.Wrapf(err, "failed to decode connection file \"%s\"", path)
	}

	if err = info.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid connection file \"%s\"", path)
	}

	return &info, nil
}

// Validate fills in defaults and rejects connection info that cannot be bound.
func (info *ConnectionInfo) Validate() error {
	if info.Transport == "" {
		info.Transport = TransportTCP
	}

	if info.Transport != TransportTCP && info.Transport != TransportIPC {
		return errors.Wrapf(ErrNotSupported, "transport \"%s\"", info.Transport)
	}

	if info.SignatureScheme == "" {
		info.SignatureScheme = DefaultSignatureScheme
	}

	if info.IP == "" {
		info.IP = "127.0.0.1"
	}

	for name, port := range map[string]int{
		"shell_port":   info.ShellPort,
		"iopub_port":   info.IOPubPort,
		"stdin_port":   info.StdinPort,
		"control_port": info.ControlPort,
		"hb_port":      info.HBPort,
	} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%w: %s=%d", ErrInvalidPort, name, port)
		}
	}

	return nil
}

// Endpoint returns the address a socket on the given port binds to.
// For the ipc transport, Jupyter names the socket file "<ip>-<port>".
func (info *ConnectionInfo) Endpoint(port int) string {
	if info.Transport == TransportIPC {
		return fmt.Sprintf("%s://%s-%d", info.Transport, info.IP, port)
	}

	return fmt.Sprintf("%s://%s:%d", info.Transport, info.IP, port)
}

// String returns the connection info as JSON with the key redacted.
func (info *ConnectionInfo) String() string {
	return info.redactedJSON("")
}

// PrettyString is the same as String, except that the JSON is indented by indentSize spaces.
func (info *ConnectionInfo) PrettyString(indentSize int) string {
	return info.redactedJSON(strings.Repeat(" ", indentSize))
}

func (info *ConnectionInfo) redactedJSON(indent string) string {
	redacted := *info
	if redacted.Key != "" {
		redacted.Key = RedactedKey
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", indent)
	if err := encoder.Encode(&redacted); err != nil {
		panic(err)
	}

	return strings.TrimSuffix(buf.String(), "\n")
}

// BindError is returned when one of the kernel's channels could not be bound.
type BindError struct {
	Channel  string
	Endpoint string
	Err      error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s channel on %s: %v", e.Channel, e.Endpoint, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

package messaging

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const (
	IsCompleteStatusComplete   = "complete"
	IsCompleteStatusIncomplete = "incomplete"
	IsCompleteStatusInvalid    = "invalid"
	IsCompleteStatusUnknown    = "unknown"

	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// DecodeContent decodes the generic content map of a request into the given typed struct.
// JSON numbers arrive as float64 and are converted to the integer fields of the target.
func DecodeContent(content map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}

	if err = decoder.Decode(content); err != nil {
		return errors.Wrap(err, "failed to decode message content")
	}

	return nil
}

type HelpLink struct {
	Text string `json:"text" mapstructure:"text"`
	URL  string `json:"url" mapstructure:"url"`
}

type LanguageInfo struct {
	Name           string `json:"name" mapstructure:"name"`
	Version        string `json:"version" mapstructure:"version"`
	MimeType       string `json:"mimetype" mapstructure:"mimetype"`
	FileExtension  string `json:"file_extension" mapstructure:"file_extension"`
	PygmentsLexer  string `json:"pygments_lexer,omitempty" mapstructure:"pygments_lexer"`
	CodemirrorMode string `json:"codemirror_mode,omitempty" mapstructure:"codemirror_mode"`
}

// KernelInfoReply is the content of a "kernel_info_reply".
type KernelInfoReply struct {
	Status                string       `json:"status" mapstructure:"status"`
	ProtocolVersion       string       `json:"protocol_version" mapstructure:"protocol_version"`
	Implementation        string       `json:"implementation" mapstructure:"implementation"`
	ImplementationVersion string       `json:"implementation_version" mapstructure:"implementation_version"`
	LanguageInfo          LanguageInfo `json:"language_info" mapstructure:"language_info"`
	Banner                string       `json:"banner" mapstructure:"banner"`
	HelpLinks             []HelpLink   `json:"help_links" mapstructure:"help_links"`
}

// ExecuteRequest is the content of an "execute_request".
type ExecuteRequest struct {
	Code            string                 `json:"code" mapstructure:"code"`
	Silent          bool                   `json:"silent" mapstructure:"silent"`
	StoreHistory    bool                   `json:"store_history" mapstructure:"store_history"`
	UserExpressions map[string]interface{} `json:"user_expressions" mapstructure:"user_expressions"`
	AllowStdin      bool                   `json:"allow_stdin" mapstructure:"allow_stdin"`
	StopOnError     bool                   `json:"stop_on_error" mapstructure:"stop_on_error"`
}

// ExecuteReply is the content of an "execute_reply".
// The error fields are only populated when Status is "error".
type ExecuteReply struct {
	Status          string                   `json:"status" mapstructure:"status"`
	ExecutionCount  int                      `json:"execution_count" mapstructure:"execution_count"`
	UserExpressions map[string]interface{}   `json:"user_expressions" mapstructure:"user_expressions"`
	Payload         []map[string]interface{} `json:"payload" mapstructure:"payload"`
	ErrName         string                   `json:"ename,omitempty" mapstructure:"ename"`
	ErrValue        string                   `json:"evalue,omitempty" mapstructure:"evalue"`
	Traceback       []string                 `json:"traceback,omitempty" mapstructure:"traceback"`
}

type IsCompleteRequest struct {
	Code string `json:"code" mapstructure:"code"`
}

// IsCompleteReply is the content of an "is_complete_reply".
// Indent is only meaningful when Status is "incomplete".
type IsCompleteReply struct {
	Status string `json:"status" mapstructure:"status"`
	Indent string `json:"indent,omitempty" mapstructure:"indent"`
}

type ShutdownRequest struct {
	Restart bool `json:"restart" mapstructure:"restart"`
}

type ShutdownReply struct {
	Status  string `json:"status" mapstructure:"status"`
	Restart bool   `json:"restart" mapstructure:"restart"`
}

type MessageKernelStatus struct {
	Status string `json:"execution_state" mapstructure:"execution_state"`
}

type StreamContent struct {
	Name string `json:"name" mapstructure:"name"`
	Text string `json:"text" mapstructure:"text"`
}

type ExecuteInputContent struct {
	Code           string `json:"code" mapstructure:"code"`
	ExecutionCount int    `json:"execution_count" mapstructure:"execution_count"`
}

// MessageError is the content of an "error" broadcast and of error replies.
type MessageError struct {
	Status    string   `json:"status,omitempty" mapstructure:"status"`
	ErrName   string   `json:"ename" mapstructure:"ename"`
	ErrValue  string   `json:"evalue" mapstructure:"evalue"`
	Traceback []string `json:"traceback" mapstructure:"traceback"`
}

func (m *MessageError) String() string {
	out, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}

	return string(out)
}

package messaging

// RequestKind is the closed set of requests the kernel answers.
type RequestKind int

const (
	KindUnrecognized RequestKind = iota
	KindKernelInfoRequest
	KindExecuteRequest
	KindIsCompleteRequest
	KindShutdownRequest
)

var requestKinds = map[JupyterMessageType]RequestKind{
	KernelInfoRequestType: KindKernelInfoRequest,
	ExecuteRequestType:    KindExecuteRequest,
	IsCompleteRequestType: KindIsCompleteRequest,
	ShutdownRequestType:   KindShutdownRequest,
}

// ParseRequestKind maps a message type onto a RequestKind.
// Anything else, including replies and broadcast types, is KindUnrecognized.
func ParseRequestKind(msgType JupyterMessageType) RequestKind {
	if kind, ok := requestKinds[msgType]; ok {
		return kind
	}
	return KindUnrecognized
}

func (k RequestKind) String() string {
	switch k {
	case KindKernelInfoRequest:
		return KernelInfoRequestType
	case KindExecuteRequest:
		return ExecuteRequestType
	case KindIsCompleteRequest:
		return IsCompleteRequestType
	case KindShutdownRequest:
		return ShutdownRequestType
	default:
		return "unrecognized"
	}
}

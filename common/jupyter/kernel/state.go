package kernel

// RequestState is the position of a request in the dispatch pipeline.
type RequestState int

const (
	Received RequestState = iota
	Authenticated
	BusyPublished
	Routed
	Handled
	RouteUnrecognized
	HandlerFailed
	IdlePublished
	Replied
	Rejected
)

func (s RequestState) String() string {
	return [...]string{"RECEIVED", "AUTHENTICATED", "BUSY_PUBLISHED", "ROUTED", "HANDLED", "ROUTE_UNRECOGNIZED",
		"HANDLER_FAILED", "IDLE_PUBLISHED", "REPLIED", "REJECTED"}[s]
}

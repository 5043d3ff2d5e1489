package execution

var (
	Pending     State = "pending"
	Running     State = "running"
	Completed   State = "completed"
	Erred       State = "erred"
	Interrupted State = "interrupted"
)

type State string

func (s State) String() string {
	return string(s)
}

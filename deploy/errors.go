package deploy

import "fmt"

type Kind int

const (
	KindArtifactNotFound Kind = iota + 1
	KindDeployment
)

func (k Kind) String() string {
	switch k {
	case KindArtifactNotFound:
		return "artifact not found"
	case KindDeployment:
		return "deployment failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error reports which step of a plan failed and why.
type Error struct {
	Kind     Kind
	Contract string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Contract, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

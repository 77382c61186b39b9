// Package invoke defines the agent invocation boundary: the only
// network/process boundary the engine depends on. Input is a serialized
// context package; output is a serialized agent result. The engine makes
// no assumption about how the agent is implemented behind it.
package invoke

import (
	"context"
	"errors"

	"github.com/relaydev/relay/pkg/models"
)

// ErrMalformedResult indicates the agent responded but its output could
// not be decoded as an AgentResult. This is a recoverable failure class.
var ErrMalformedResult = errors.New("malformed agent result")

// Invoker dispatches a context package to an external agent and returns
// its result. Implementations must honor context cancellation; waiting on
// an agent's result is the only blocking point in the system.
type Invoker interface {
	Invoke(ctx context.Context, pkg *models.ContextPackage) (*models.AgentResult, error)
}

// Func adapts a plain function to the Invoker interface.
type Func func(ctx context.Context, pkg *models.ContextPackage) (*models.AgentResult, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, pkg *models.ContextPackage) (*models.AgentResult, error) {
	return f(ctx, pkg)
}

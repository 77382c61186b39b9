// Package classify maps incoming requests to task categories and candidate
// agents. Classification is a pluggable strategy: the engine only depends
// on the Classifier interface, so a rule table, an ML model, or a human
// dispatcher are all legal implementations. The deterministic rule-table
// variant in this package is a pure function of (request, registry).
package classify

import (
	"github.com/relaydev/relay/internal/registry"
	"github.com/relaydev/relay/pkg/models"
)

// Classifier maps a request to one or more ranked candidates. A request
// may match several independent categories; all matches are returned, not
// just the top one. When nothing matches, implementations return a single
// ambiguous candidate routed to a configured fallback agent.
type Classifier interface {
	Classify(req *models.Request, reg *registry.Registry) ([]models.RankedCandidate, error)
}

// Func adapts a plain function to the Classifier interface.
type Func func(req *models.Request, reg *registry.Registry) ([]models.RankedCandidate, error)

// Classify calls f.
func (f Func) Classify(req *models.Request, reg *registry.Registry) ([]models.RankedCandidate, error) {
	return f(req, reg)
}

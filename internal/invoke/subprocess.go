package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/relaydev/relay/pkg/models"
)

// SubprocessInvoker runs one external command per agent, writing the
// JSON-encoded context package to the command's stdin and decoding a
// JSON-encoded agent result from its stdout.
type SubprocessInvoker struct {
	// commands maps agent ID to the command line serving that agent.
	commands map[string][]string
	// defaultCommand serves agents with no dedicated command. Empty
	// means unmapped agents are an invocation error.
	defaultCommand []string
}

// NewSubprocessInvoker creates an invoker with a per-agent command map.
// Command values are argv slices; the package is piped on stdin.
func NewSubprocessInvoker(commands map[string][]string, defaultCommand []string) *SubprocessInvoker {
	return &SubprocessInvoker{
		commands:       commands,
		defaultCommand: defaultCommand,
	}
}

// commandFor resolves the argv for an agent.
func (s *SubprocessInvoker) commandFor(agentID string) ([]string, error) {
	if argv, ok := s.commands[agentID]; ok && len(argv) > 0 {
		return argv, nil
	}
	if len(s.defaultCommand) > 0 {
		return s.defaultCommand, nil
	}
	return nil, fmt.Errorf("no command configured for agent %s", agentID)
}

// Invoke implements the Invoker interface.
func (s *SubprocessInvoker) Invoke(ctx context.Context, pkg *models.ContextPackage) (*models.AgentResult, error) {
	argv, err := s.commandFor(pkg.Agent.TargetAgent)
	if err != nil {
		return nil, err
	}

	input, err := json.Marshal(pkg)
	if err != nil {
		return nil, fmt.Errorf("encode context package: %w", err)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("agent %s invocation failed: %s", pkg.Agent.TargetAgent, msg)
	}

	var result models.AgentResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("%w: agent %s: %v", ErrMalformedResult, pkg.Agent.TargetAgent, err)
	}
	if result.AgentID == "" {
		result.AgentID = pkg.Agent.TargetAgent
	}
	return &result, nil
}

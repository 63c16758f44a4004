// Package agent is the communication boundary to the remote agent under
// test. The harness needs exactly one operation from it: submit a task,
// receive a response.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Delivery is the task payload sent to the agent.
type Delivery struct {
	Type            string          `json:"type"`
	TaskID          string          `json:"task_id"`
	TaskCategory    string          `json:"task_category"`
	Prompt          string          `json:"prompt"`
	Persona         string          `json:"persona"`
	RequiredContext string          `json:"required_context"`
	Config          DeliveryConfig  `json:"config"`
	Entropy         DeliveryEntropy `json:"entropy"`
}

type DeliveryConfig struct {
	OrgType  string `json:"org_type"`
	MaxSteps int    `json:"max_steps"`
}

type DeliveryEntropy struct {
	DriftLevel string `json:"drift_level"`
	RotLevel   string `json:"rot_level"`
}

// Metrics is the agent's self-reported resource usage. All fields are
// optional; absent values stay zero.
type Metrics struct {
	Tokens           int `json:"tokens"`
	ToolCalls        int `json:"tool_calls"`
	Queries          int `json:"queries"`
	InvalidToolCalls int `json:"invalid_tool_calls,omitempty"`
	Errors           int `json:"errors,omitempty"`
}

// Response is the agent's answer to one delivery. It is untrusted input and
// must pass Validate before use.
type Response struct {
	TaskID   string  `json:"task_id"`
	Answer   string  `json:"answer"`
	Category string  `json:"category,omitempty"`
	Metrics  Metrics `json:"metrics"`
	RawTrace string  `json:"raw_trace,omitempty"`
}

// ErrProtocolViolation marks a malformed or mismatched agent response.
var ErrProtocolViolation = errors.New("agent protocol violation")

// Validate checks the mandatory response fields against the delivery.
func Validate(d *Delivery, r *Response) error {
	if r == nil {
		return fmt.Errorf("%w: empty response", ErrProtocolViolation)
	}
	if strings.TrimSpace(r.Answer) == "" {
		return fmt.Errorf("%w: missing answer field", ErrProtocolViolation)
	}
	if r.TaskID != d.TaskID {
		return fmt.Errorf("%w: response task_id %q does not match %q", ErrProtocolViolation, r.TaskID, d.TaskID)
	}
	return nil
}

// Client submits one task to the remote agent and returns its response. The
// transport behind it is an external collaborator; implementations must
// honor ctx cancellation and deadlines.
type Client interface {
	Send(ctx context.Context, d *Delivery) (*Response, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, d *Delivery) (*Response, error)

func (f ClientFunc) Send(ctx context.Context, d *Delivery) (*Response, error) {
	return f(ctx, d)
}

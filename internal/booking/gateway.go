package booking

import "context"

// Payload is what a completed booking is submitted as. DateTime is RFC 3339.
type Payload struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	DateTime   string `json:"datetime"`
	Department string `json:"department"`
	Doctor     string `json:"doctor"`
	Message    string `json:"message"`
}

// Result is the gateway's answer to a submission.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Gateway persists a completed booking and triggers its notifications.
// Implementations own their timeout and retry policy.
type Gateway interface {
	Submit(ctx context.Context, payload Payload) (Result, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, payload Payload) (Result, error)

// Submit calls f.
func (f GatewayFunc) Submit(ctx context.Context, payload Payload) (Result, error) {
	return f(ctx, payload)
}

// Package camunda talks to the Zeebe gateway: it starts review processes,
// publishes moderation decisions and runs job workers.
package camunda

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"business-directory/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryPolicy bounds the attempts made for one gateway call.
type RetryPolicy struct {
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d <= 0 || d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

var DefaultRetryPolicy = RetryPolicy{
	Retries:   3,
	BaseDelay: 500 * time.Millisecond,
	MaxDelay:  5 * time.Second,
}

type Options struct {
	Gateway        string
	Plaintext      bool
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	Retry          RetryPolicy
}

type Client struct {
	zb   zbc.Client
	opts Options
}

// NewClient connects to a plaintext gateway.
func NewClient(gateway string, requestTimeout time.Duration) (*Client, error) {
	return Dial(Options{
		Gateway:        gateway,
		Plaintext:      true,
		RequestTimeout: requestTimeout,
	})
}

// Dial opens the gateway connection and fails unless the broker answers a
// topology request within ConnectTimeout.
func Dial(opts Options) (*Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy
	}

	zb, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         opts.Gateway,
		UsePlaintextConnection: opts.Plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("create zeebe client: %w", err)
	}

	c := &Client{zb: zb, opts: opts}
	if err := c.HealthCheck(context.Background()); err != nil {
		zb.Close()
		return nil, fmt.Errorf("zeebe gateway %s: %w", opts.Gateway, err)
	}
	return c, nil
}

// GetClient exposes the raw client for job workers.
func (c *Client) GetClient() zbc.Client {
	return c.zb
}

func (c *Client) Close() error {
	return c.zb.Close()
}

// HealthCheck asks the gateway for the cluster topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	if _, err := c.zb.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

// Do runs call with a per-attempt request timeout, retrying transient
// gateway failures. The returned error is a *errors.StandardError unless ctx
// ended first.
func (c *Client) Do(ctx context.Context, operation string, call func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := c.attempt(ctx, call)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("zeebe %s: %w", operation, ctx.Err())
		}
		if !transient(err) || attempt >= c.opts.Retry.Retries {
			return classify(operation, attempt+1, err)
		}

		timer := time.NewTimer(c.opts.Retry.delay(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("zeebe %s: %w", operation, ctx.Err())
		}
	}
}

func (c *Client) attempt(ctx context.Context, call func(ctx context.Context) error) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	return call(reqCtx)
}

func transient(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{"connection refused", "connection reset", "timeout", "deadline exceeded", "unavailable", "broken pipe"} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// classify maps a gateway failure onto the application error codes.
func classify(operation string, attempts int, err error) error {
	wrapped := fmt.Errorf("zeebe %s failed after %d attempt(s): %w", operation, attempts, err)

	code := status.Code(err)
	if code == codes.Unknown {
		code = codeFromMessage(err.Error())
	}

	switch code {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return errors.NewWorkflowUnavailableError(wrapped)
	case codes.DeadlineExceeded:
		return errors.NewTimeoutError("zeebe", wrapped)
	case codes.NotFound:
		return errors.NewResourceNotFoundError("zeebe", wrapped.Error())
	case codes.AlreadyExists:
		return errors.NewBusinessRuleError(wrapped.Error(), "resource already exists")
	case codes.PermissionDenied, codes.Unauthenticated:
		return errors.NewAuthenticationError(wrapped.Error())
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}

func codeFromMessage(msg string) codes.Code {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "unavailable"), strings.Contains(msg, "broken pipe"):
		return codes.Unavailable
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return codes.DeadlineExceeded
	case strings.Contains(msg, "not found"):
		return codes.NotFound
	case strings.Contains(msg, "already exists"):
		return codes.AlreadyExists
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "unauthorized"):
		return codes.PermissionDenied
	}
	return codes.Unknown
}

// internal/scheduler/zeebe.go
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	apperrors "demand-broker/internal/common/errors"
	"demand-broker/internal/common/logger"
)

// ClientConfig holds the connection settings of the Zeebe gateway the
// broker publishes its deferred tasks to.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig defines retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// Zeebe publishes tasks as broker messages. The task name is the message
// name and the entity key correlates the message to a waiting instance.
type Zeebe struct {
	client zbc.Client
	config *ClientConfig
	log    logger.Logger
}

// NewZeebe connects to the gateway and verifies it answers a topology
// request before accepting any task.
func NewZeebe(config *ClientConfig, log logger.Logger) (*Zeebe, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}

	client, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()
	if _, err := client.NewTopologyCommand().Send(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to zeebe gateway at %s: %w", config.GatewayAddress, err)
	}

	return &Zeebe{client: client, config: config, log: log}, nil
}

func (z *Zeebe) Close() error {
	return z.client.Close()
}

func (z *Zeebe) Enqueue(ctx context.Context, task Task) error {
	publish := func(ctx context.Context) error {
		cmd, err := z.client.NewPublishMessageCommand().
			MessageName(task.Name).
			CorrelationKey(task.EntityKey).
			VariablesFromMap(task.Payload)
		if err != nil {
			return err
		}
		reqCtx, cancel := context.WithTimeout(ctx, z.config.RequestTimeout)
		defer cancel()
		_, err = cmd.Send(reqCtx)
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= z.config.RetryConfig.MaxRetries; attempt++ {
		if lastErr = publish(ctx); lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == z.config.RetryConfig.MaxRetries {
			break
		}

		delay := z.config.RetryConfig.BaseDelay * time.Duration(1<<attempt)
		if delay > z.config.RetryConfig.MaxDelay {
			delay = z.config.RetryConfig.MaxDelay
		}
		z.log.Warn("task publish failed, retrying", map[string]interface{}{
			"task":    task.Name,
			"attempt": attempt + 1,
			"delay":   delay.String(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return apperrors.NewDataAccessError("enqueue task", ctx.Err())
		}
	}
	return apperrors.NewDataAccessError("enqueue task", lastErr)
}

// isRetryable reports whether the error looks transient.
func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

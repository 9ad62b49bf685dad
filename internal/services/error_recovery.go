package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Note: CircuitBreaker types are defined in circuit_breaker.go

// ErrorRecoveryManager owns the retry policies and circuit breakers for
// every upstream the service talks to (market feed, classifier, Postgres,
// Redis, Telegram).
type ErrorRecoveryManager struct {
	logger          *logrus.Logger
	circuitBreakers map[string]*CircuitBreaker
	retryPolicies   map[string]*RetryPolicy
	mu              sync.RWMutex

	fallbackEnabled bool
}

// RetryPolicy defines retry behavior for failed operations
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// OperationResult represents the result of an operation with error recovery
type OperationResult struct {
	Success      bool
	Data         interface{}
	Error        error
	Attempts     int
	Duration     time.Duration
	Recovered    bool
	FallbackUsed bool
}

// NewErrorRecoveryManager creates a new error recovery manager
func NewErrorRecoveryManager(logger *logrus.Logger) *ErrorRecoveryManager {
	return &ErrorRecoveryManager{
		logger:          logger,
		circuitBreakers: make(map[string]*CircuitBreaker),
		retryPolicies:   make(map[string]*RetryPolicy),
		fallbackEnabled: true,
	}
}

// RegisterCircuitBreaker registers a circuit breaker for a specific operation
func (erm *ErrorRecoveryManager) RegisterCircuitBreaker(name string, maxFailures int64, timeout time.Duration) {
	erm.mu.Lock()
	defer erm.mu.Unlock()

	config := CircuitBreakerConfig{
		FailureThreshold: int(maxFailures),
		SuccessThreshold: 2,
		Timeout:          timeout,
		MaxRequests:      5,
		ResetTimeout:     120 * time.Second,
	}
	erm.circuitBreakers[name] = NewCircuitBreaker(name, config, erm.logger)
}

// RegisterRetryPolicy registers a retry policy for a specific operation
func (erm *ErrorRecoveryManager) RegisterRetryPolicy(name string, policy *RetryPolicy) {
	erm.mu.Lock()
	defer erm.mu.Unlock()

	erm.retryPolicies[name] = policy
}

// ExecuteWithRecovery executes an operation behind the named circuit
// breaker and retry policy, falling back when everything else failed.
func (erm *ErrorRecoveryManager) ExecuteWithRecovery(
	ctx context.Context,
	operationName string,
	operation func() (interface{}, error),
	fallback func() (interface{}, error),
) *OperationResult {
	start := time.Now()
	result := &OperationResult{}

	erm.mu.RLock()
	cb := erm.circuitBreakers[operationName]
	retryPolicy := erm.retryPolicies[operationName]
	erm.mu.RUnlock()

	if cb != nil {
		err := cb.Execute(ctx, func(ctx context.Context) error {
			data, execErr := operation()
			if execErr == nil {
				result.Success = true
				result.Data = data
				result.Attempts = 1
				result.Duration = time.Since(start)
			}
			return execErr
		})
		if err == nil {
			return result
		}
		result.Error = err

		// Breaker rejected or upstream failed; a configured fallback
		// still satisfies the caller
		if cb.GetState() == Open && fallback != nil && erm.fallbackEnabled {
			data, fbErr := fallback()
			if fbErr == nil {
				result.Success = true
				result.Data = data
				result.FallbackUsed = true
				result.Attempts = 1
				result.Duration = time.Since(start)
				return result
			}
		}
	}

	if retryPolicy != nil {
		return erm.executeWithRetry(ctx, operation, fallback, retryPolicy, start)
	}

	// Simple execution without recovery
	data, err := operation()
	result.Attempts = 1
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err
		if fallback != nil && erm.fallbackEnabled {
			data, err = fallback()
			if err == nil {
				result.Success = true
				result.Data = data
				result.FallbackUsed = true
			}
		}
	} else {
		result.Success = true
		result.Data = data
	}

	return result
}

func (erm *ErrorRecoveryManager) executeWithRetry(
	ctx context.Context,
	operation func() (interface{}, error),
	fallback func() (interface{}, error),
	policy *RetryPolicy,
	start time.Time,
) *OperationResult {
	result := &OperationResult{}
	delay := policy.InitialDelay

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		if ctx.Err() != nil {
			result.Error = ctx.Err()
			result.Duration = time.Since(start)
			return result
		}

		data, err := operation()
		if err == nil {
			result.Success = true
			result.Data = data
			result.Duration = time.Since(start)
			if attempt > 0 {
				result.Recovered = true
			}
			return result
		}

		result.Error = err

		if attempt == policy.MaxRetries {
			break
		}

		if err := erm.wait(ctx, erm.calculateDelay(delay, policy)); err != nil {
			result.Error = err
			result.Duration = time.Since(start)
			return result
		}
		delay = nextDelay(delay, policy)
	}

	// All retries failed, try fallback
	if fallback != nil && erm.fallbackEnabled {
		data, err := fallback()
		if err == nil {
			result.Success = true
			result.Data = data
			result.FallbackUsed = true
		}
	}

	result.Duration = time.Since(start)
	return result
}

// ExecuteWithRetry executes an operation with retry logic only (no circuit
// breaker). Unknown operation names get a conservative default policy.
func (erm *ErrorRecoveryManager) ExecuteWithRetry(
	ctx context.Context,
	operationName string,
	operation func() error,
) error {
	start := time.Now()

	erm.mu.RLock()
	retryPolicy := erm.retryPolicies[operationName]
	erm.mu.RUnlock()

	if retryPolicy == nil {
		retryPolicy = &RetryPolicy{
			MaxRetries:    3,
			InitialDelay:  100 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		}
	}

	delay := retryPolicy.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= retryPolicy.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				erm.logger.WithFields(logrus.Fields{
					"operation": operationName,
					"attempts":  attempt + 1,
					"duration":  time.Since(start),
				}).Info("Operation recovered after retry")
			}
			return nil
		}

		lastErr = err

		if attempt == retryPolicy.MaxRetries {
			break
		}

		erm.logger.WithFields(logrus.Fields{
			"operation": operationName,
			"attempt":   attempt + 1,
			"error":     err.Error(),
			"delay":     delay,
		}).Warn("Operation failed, retrying")

		if err := erm.wait(ctx, erm.calculateDelay(delay, retryPolicy)); err != nil {
			return err
		}
		delay = nextDelay(delay, retryPolicy)
	}

	erm.logger.WithFields(logrus.Fields{
		"operation": operationName,
		"attempts":  retryPolicy.MaxRetries + 1,
		"duration":  time.Since(start),
		"error":     lastErr.Error(),
	}).Error("Operation failed after all retries")

	return lastErr
}

// wait blocks for the given delay or until the context is done.
func (erm *ErrorRecoveryManager) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// calculateDelay adds up to 25% jitter on top of the base delay
func (erm *ErrorRecoveryManager) calculateDelay(baseDelay time.Duration, policy *RetryPolicy) time.Duration {
	if !policy.JitterEnabled {
		return baseDelay
	}
	jitter := time.Duration(rand.Float64() * 0.25 * float64(baseDelay))
	return baseDelay + jitter
}

func nextDelay(delay time.Duration, policy *RetryPolicy) time.Duration {
	next := time.Duration(float64(delay) * policy.BackoffFactor)
	if next > policy.MaxDelay {
		next = policy.MaxDelay
	}
	return next
}

// GetCircuitBreakerStatus returns the status of all circuit breakers for
// the detailed health endpoint.
func (erm *ErrorRecoveryManager) GetCircuitBreakerStatus() map[string]interface{} {
	erm.mu.RLock()
	defer erm.mu.RUnlock()

	status := make(map[string]interface{})
	for name, cb := range erm.circuitBreakers {
		stats := cb.GetStats()
		status[name] = map[string]interface{}{
			"state":         cb.GetState(),
			"failure_count": stats.FailedRequests,
			"last_failure":  stats.LastFailureTime,
		}
	}

	return status
}

// DefaultRetryPolicies returns the retry policies registered at startup
// for the operations the service performs.
func DefaultRetryPolicies() map[string]*RetryPolicy {
	return map[string]*RetryPolicy{
		"marketfeed_api": {
			MaxRetries:    3,
			InitialDelay:  250 * time.Millisecond,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
		"classifier_api": {
			MaxRetries:    2,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
		"database_operation": {
			MaxRetries:    5,
			InitialDelay:  50 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			BackoffFactor: 1.5,
			JitterEnabled: true,
		},
		"redis_operation": {
			MaxRetries:    3,
			InitialDelay:  25 * time.Millisecond,
			MaxDelay:      1 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: false,
		},
		"telegram_api": {
			MaxRetries:    3,
			InitialDelay:  time.Second,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
	}
}

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// checkTimeout bounds every dependency ping
const checkTimeout = 2 * time.Second

// Status represents the health status of a component
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// Check represents a single health check
type Check struct {
	Name   string                 `json:"name"`
	Status Status                 `json:"status"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// HealthResponse represents the health endpoint response
type HealthResponse struct {
	Status Status  `json:"status"`
	Checks []Check `json:"checks,omitempty"`
}

// CheckFunc is a function that performs a health check
type CheckFunc func() Check

// Checker manages health checks for the application
type Checker struct {
	mu              sync.RWMutex
	livenessChecks  []CheckFunc
	readinessChecks []CheckFunc
	draining        bool
}

// NewChecker creates a new health checker
func NewChecker() *Checker {
	return &Checker{
		livenessChecks:  make([]CheckFunc, 0),
		readinessChecks: make([]CheckFunc, 0),
	}
}

// AddLivenessCheck adds a liveness check
func (c *Checker) AddLivenessCheck(check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.livenessChecks = append(c.livenessChecks, check)
}

// AddReadinessCheck adds a readiness check
func (c *Checker) AddReadinessCheck(check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readinessChecks = append(c.readinessChecks, check)
}

// runChecks runs a set of health checks and returns the aggregated response
func (c *Checker) runChecks(checks []CheckFunc) HealthResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()

	response := HealthResponse{
		Status: StatusUp,
		Checks: make([]Check, 0, len(checks)),
	}

	for _, checkFunc := range checks {
		check := checkFunc()
		response.Checks = append(response.Checks, check)
		if check.Status == StatusDown {
			response.Status = StatusDown
		}
	}

	return response
}

// GetLiveness returns the liveness status
func (c *Checker) GetLiveness() HealthResponse {
	return c.runChecks(c.livenessChecks)
}

// GetReadiness returns the readiness status. A draining instance is never ready.
func (c *Checker) GetReadiness() HealthResponse {
	response := c.runChecks(c.readinessChecks)
	if c.isDraining() {
		response.Status = StatusDown
		response.Checks = append(response.Checks, Check{Name: "Draining", Status: StatusDown})
	}
	return response
}

// SetDraining marks the instance as shutting down so load balancers stop
// routing new connections to it
func (c *Checker) SetDraining() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draining = true
}

func (c *Checker) isDraining() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.draining
}

// GetHealth returns the combined health status
func (c *Checker) GetHealth() HealthResponse {
	c.mu.RLock()
	allChecks := make([]CheckFunc, 0, len(c.livenessChecks)+len(c.readinessChecks))
	allChecks = append(allChecks, c.livenessChecks...)
	allChecks = append(allChecks, c.readinessChecks...)
	c.mu.RUnlock()

	return c.runChecks(allChecks)
}

// HandleHealth handles the /q/health endpoint
func (c *Checker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := c.GetHealth()
	c.writeResponse(w, response)
}

// HandleLive handles the /q/health/live endpoint
func (c *Checker) HandleLive(w http.ResponseWriter, r *http.Request) {
	// Liveness is always UP if the server is running
	response := c.GetLiveness()
	if len(response.Checks) == 0 {
		response.Status = StatusUp
	}
	c.writeResponse(w, response)
}

// HandleReady handles the /q/health/ready endpoint
func (c *Checker) HandleReady(w http.ResponseWriter, r *http.Request) {
	c.writeResponse(w, c.GetReadiness())
}

// Routes mounts the health endpoints
func (c *Checker) Routes(r chi.Router) {
	r.Get("/q/health", c.HandleHealth)
	r.Get("/q/health/live", c.HandleLive)
	r.Get("/q/health/ready", c.HandleReady)
}

func (c *Checker) writeResponse(w http.ResponseWriter, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")

	if response.Status == StatusDown {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// pingCheck reports DOWN with the error when ping fails
func pingCheck(name string, ping func(ctx context.Context) error) CheckFunc {
	return func() Check {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		if err := ping(ctx); err != nil {
			return Check{
				Name:   name,
				Status: StatusDown,
				Data: map[string]interface{}{
					"error": err.Error(),
				},
			}
		}
		return Check{
			Name:   name,
			Status: StatusUp,
		}
	}
}

// MongoDBCheck creates a health check for MongoDB
func MongoDBCheck(ping func(ctx context.Context) error) CheckFunc {
	return pingCheck("MongoDB", ping)
}

// RedisCheck creates a health check for Redis
func RedisCheck(ping func(ctx context.Context) error) CheckFunc {
	return pingCheck("Redis", ping)
}

// BusCheck creates a health check for the event bus
func BusCheck(backend string, ping func(ctx context.Context) error) CheckFunc {
	check := pingCheck("EventBus", ping)
	return func() Check {
		c := check()
		if c.Data == nil {
			c.Data = map[string]interface{}{}
		}
		c.Data["backend"] = backend
		return c
	}
}

// NATSCheck creates a health check for NATS
func NATSCheck(isConnected func() bool) CheckFunc {
	return func() Check {
		if !isConnected() {
			return Check{
				Name:   "NATS",
				Status: StatusDown,
			}
		}
		return Check{
			Name:   "NATS",
			Status: StatusUp,
		}
	}
}

// PresenceCheck reports the presence circuit breaker. Sessions keep working
// while it is open, so the check stays UP and only flags degradation.
func PresenceCheck(breakerState func() string) CheckFunc {
	return func() Check {
		state := breakerState()
		return Check{
			Name:   "Presence",
			Status: StatusUp,
			Data: map[string]interface{}{
				"breaker":  state,
				"degraded": state != "closed",
			},
		}
	}
}

// SessionsCheck reports the number of open socket sessions
func SessionsCheck(count func() int) CheckFunc {
	return func() Check {
		return Check{
			Name:   "Sessions",
			Status: StatusUp,
			Data: map[string]interface{}{
				"open": count(),
			},
		}
	}
}

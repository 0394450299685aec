package admission

import (
	"sync"

	"pigeon-observer/src/helpers"
	"pigeon-observer/src/logger"
)

// Controller bounds how many aggregation requests run at once. Admission is
// counted per user: overlapping requests from one user share a slot, so a
// dashboard with several panels cannot starve everyone else by itself.
type Controller struct {
	mu       sync.Mutex
	max      int
	admitted map[string]int // user id -> active request depth
	waiting  int
	Logger   *logger.Logger
}

// -----------------------------------------------------------------------------

func NewController(maxConcurrent int, log *logger.Logger) *Controller {
	if maxConcurrent <= 0 {
		maxConcurrent = 20
	}
	return &Controller{
		max:      maxConcurrent,
		admitted: make(map[string]int),
		Logger:   log,
	}
}

// -----------------------------------------------------------------------------

// Admit reserves a slot for the user, or fails fast with a queue position
// the client can surface. A user who already holds a slot is always
// admitted; only the first concurrent request per user consumes capacity.
func (c *Controller) Admit(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if depth := c.admitted[userID]; depth > 0 {
		c.admitted[userID] = depth + 1
		return nil
	}

	if len(c.admitted) >= c.max {
		c.waiting++
		position := c.waiting
		c.Logger.Info("Rejected request from %s at capacity %d (position %d)", userID, c.max, position)
		return &helpers.AdmissionRejectedError{UserID: userID, QueuePosition: position}
	}

	c.admitted[userID] = 1
	return nil
}

// -----------------------------------------------------------------------------

// Release returns the user's slot once their outermost request finishes.
// Releasing an unknown user is a no-op.
func (c *Controller) Release(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	depth, ok := c.admitted[userID]
	if !ok {
		return
	}

	if depth <= 1 {
		delete(c.admitted, userID)
		if c.waiting > 0 {
			c.waiting--
		}
	} else {
		c.admitted[userID] = depth - 1
	}
}

// -----------------------------------------------------------------------------

// ActiveUsers reports how many users currently hold slots.
func (c *Controller) ActiveUsers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.admitted)
}

package webserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/govproposals/src/dispatch"
	"github.com/stake-plus/govproposals/src/proposals"
)

// DefaultReplyTimeout bounds how long a request waits for its reply.
const DefaultReplyTimeout = 30 * time.Second

type Commands struct {
	submitter Submitter
	timeout   time.Duration
}

func NewCommands(submitter Submitter, timeout time.Duration) Commands {
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	return Commands{submitter: submitter, timeout: timeout}
}

// Run queues the command on the dispatcher, so it shares per-sender
// ordering with every other transport, and waits for the single reply.
func (h Commands) Run(c *gin.Context) {
	var req struct {
		SenderID       string `json:"sender_id"`
		SenderName     string `json:"sender_name"`
		ConversationID string `json:"conversation_id"`
		Text           string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	replies := make(chan string, 1)
	item := dispatch.Inbound{
		Transport:      Transport,
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		SenderName:     req.SenderName,
		Text:           req.Text,
		Respond: func(_ context.Context, reply string) error {
			replies <- reply
			return nil
		},
	}
	if err := h.submitter.Submit(item); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, dispatch.ErrStopped) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"err": err.Error()})
		return
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()
	select {
	case reply := <-replies:
		c.JSON(http.StatusOK, gin.H{"reply": reply})
	case <-timer.C:
		c.JSON(http.StatusGatewayTimeout, gin.H{"err": "timed out waiting for reply"})
	case <-c.Request.Context().Done():
		c.Status(499)
	}
}

type Proposals struct{ reader Reader }

func NewProposals(reader Reader) Proposals { return Proposals{reader: reader} }

func (h Proposals) List(c *gin.Context) {
	list, err := h.reader.ListProposals(c.Request.Context())
	if err != nil {
		c.JSON(storeStatus(err), gin.H{"err": "failed to list proposals"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h Proposals) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad proposal id"})
		return
	}

	p, err := h.reader.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, proposals.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"err": "proposal not found"})
	case err != nil:
		c.JSON(storeStatus(err), gin.H{"err": "failed to load proposal"})
	default:
		c.JSON(http.StatusOK, p)
	}
}

// storeStatus reports 503 while the store is unreachable and 500 otherwise.
func storeStatus(err error) int {
	if proposals.IsStorageError(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func health(checks []Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for _, check := range checks {
			if err := check.Probe(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[check.Name] = err.Error()
				continue
			}
			results[check.Name] = "ok"
		}
		c.JSON(status, results)
	}
}

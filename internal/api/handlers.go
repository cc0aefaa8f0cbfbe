package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OhSeongHyeon/mocktalkfront/internal/client"
	"github.com/OhSeongHyeon/mocktalkfront/internal/store"
)

type handler struct {
	client  *client.Client
	history *store.Store
}

// ChannelStatus is one row of GET /channels.
type ChannelStatus struct {
	Scope   string `json:"scope"`
	State   string `json:"state"`
	Attempt int    `json:"attempt"`
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// session never includes the access token itself.
func (h *handler) session(c *gin.Context) {
	st := h.client.Store
	body := gin.H{
		"authenticated": st.Authenticated(),
		"renewalArmed":  h.client.Scheduler.Armed(),
		"profile":       st.Profile(),
	}
	if expiresAt, ok := st.Expiry(); ok {
		body["expiresAt"] = expiresAt.UTC().Format(time.RFC3339)
		body["expiresInSec"] = int64(time.Until(expiresAt).Seconds())
	}
	if role := st.Role(); role != "" {
		body["role"] = role
		body["admin"] = st.IsAdmin()
	}
	c.JSON(http.StatusOK, body)
}

func (h *handler) channels(c *gin.Context) {
	chans := h.client.Channels()
	out := make([]ChannelStatus, 0, len(chans))
	for _, ch := range chans {
		out = append(out, ChannelStatus{
			Scope:   ch.Scope(),
			State:   ch.State().String(),
			Attempt: ch.Attempt(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"channels": out})
}

func (h *handler) listHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	entries, err := h.history.ListHistory(limit, c.Query("event"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (h *handler) logout(c *gin.Context) {
	if err := h.client.Logout(c.Request.Context()); err != nil {
		// Local state is already cleared.
		c.JSON(http.StatusAccepted, gin.H{"status": "logged_out", "warning": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

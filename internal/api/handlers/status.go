package handlers

import (
	"github.com/amaumene/chansync/internal/controllers"
	"github.com/amaumene/chansync/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// StatusHandler handles status requests
type StatusHandler struct {
	session  *controllers.Session
	registry *controllers.Registry
	follow   *controllers.FollowController
	inbox    *controllers.InboxController
	logger   *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(
	session *controllers.Session,
	registry *controllers.Registry,
	follow *controllers.FollowController,
	inbox *controllers.InboxController,
	logger *logrus.Logger,
) *StatusHandler {
	return &StatusHandler{
		session:  session,
		registry: registry,
		follow:   follow,
		inbox:    inbox,
		logger:   logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	Loaded          bool                 `json:"loaded"`
	Items           int                  `json:"items"`
	OwnItems        int                  `json:"own_items"`
	HasMore         bool                 `json:"has_more"`
	Draft           *models.ContentItem  `json:"draft,omitempty"`
	Channel         *models.ChannelInfo  `json:"channel,omitempty"`
	Loops           []models.PollSession `json:"loops"`
	UnreadInbox     int                  `json:"unread_inbox"`
	PendingRequests int                  `json:"pending_follow_requests"`
}

// Status returns the session and background loop status
func (h *StatusHandler) Status(c *fiber.Ctx) error {
	snap := h.session.Snapshot()

	return c.JSON(StatusResponse{
		Loaded:          snap.Loaded,
		Items:           len(snap.Items),
		OwnItems:        len(snap.Own),
		HasMore:         snap.HasMore,
		Draft:           snap.Draft,
		Channel:         snap.Channel,
		Loops:           h.registry.Sessions(),
		UnreadInbox:     h.inbox.UnreadCount(),
		PendingRequests: len(h.follow.Requests()),
	})
}

package handlers

import (
	"strings"
	"time"

	"github.com/amaumene/chansync/internal/controllers"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// searchWait bounds how long a search request waits for its debounce
const searchWait = 5 * time.Second

// SocialHandler exposes username search, the inbox and follow requests
type SocialHandler struct {
	search *controllers.SearchDebouncer
	follow *controllers.FollowController
	inbox  *controllers.InboxController
	logger *logrus.Logger
}

// NewSocialHandler creates a new social handler
func NewSocialHandler(
	search *controllers.SearchDebouncer,
	follow *controllers.FollowController,
	inbox *controllers.InboxController,
	logger *logrus.Logger,
) *SocialHandler {
	return &SocialHandler{
		search: search,
		follow: follow,
		inbox:  inbox,
		logger: logger,
	}
}

// Search debounces a username search and returns the current results
func (h *SocialHandler) Search(c *fiber.Ctx) error {
	done := h.search.Type(c.Query("q"))

	select {
	case <-done:
	case <-time.After(searchWait):
	}

	query, results := h.search.Results()
	return c.JSON(fiber.Map{
		"query":   query,
		"results": results,
	})
}

// Inbox returns the notifications
func (h *SocialHandler) Inbox(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"unread":        h.inbox.UnreadCount(),
		"notifications": h.inbox.Notifications(),
	})
}

// MarkRead marks a notification as read
func (h *SocialHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.inbox.MarkRead(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// FollowRequests returns pending follow requests and added usernames
func (h *SocialHandler) FollowRequests(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"requests":        h.follow.Requests(),
		"added_usernames": h.follow.AddedUsernames(),
	})
}

// RespondFollowRequest accepts or declines a follow request
func (h *SocialHandler) RespondFollowRequest(c *fiber.Ctx) error {
	id := c.Params("id")

	var err error
	switch c.Params("action") {
	case "accept":
		err = h.follow.Accept(c.UserContext(), id)
	case "decline":
		err = h.follow.Decline(c.UserContext(), id)
	default:
		return badRequest(c, "action must be accept or decline")
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddUsername sends a follow request
func (h *SocialHandler) AddUsername(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		return badRequest(c, "username is required")
	}

	created, err := h.follow.AddUsername(c.UserContext(), req.Username)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

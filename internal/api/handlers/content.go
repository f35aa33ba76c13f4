package handlers

import (
	"github.com/amaumene/chansync/internal/controllers"
	"github.com/amaumene/chansync/internal/models"
	"github.com/amaumene/chansync/internal/services/backend"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ContentHandler exposes the channel session
type ContentHandler struct {
	session *controllers.Session
	logger  *logrus.Logger
}

// NewContentHandler creates a new content handler
func NewContentHandler(session *controllers.Session, logger *logrus.Logger) *ContentHandler {
	return &ContentHandler{
		session: session,
		logger:  logger,
	}
}

// FilterRequest changes the list filters. Absent fields are left unchanged.
type FilterRequest struct {
	OnlyMine   *bool             `json:"onlyMine"`
	Visibility models.Visibility `json:"visibility"`
}

// List returns the current list
func (h *ContentHandler) List(c *fiber.Ctx) error {
	return c.JSON(h.session.Snapshot())
}

// Refresh reloads the first page. Before a successful initial load it
// retries the initial load.
func (h *ContentHandler) Refresh(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var err error
	if h.session.Snapshot().Loaded {
		err = h.session.Refresh(ctx)
	} else {
		err = h.session.LoadInitial(ctx)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.session.Snapshot())
}

// More loads the next page
func (h *ContentHandler) More(c *fiber.Ctx) error {
	h.session.LoadMore(c.UserContext())
	return c.JSON(h.session.Snapshot())
}

// Filter applies the "only mine" toggle and the visibility filter
func (h *ContentHandler) Filter(c *fiber.Ctx) error {
	var req FilterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	if req.Visibility != "" {
		if _, err := h.session.SetVisibility(req.Visibility); err != nil {
			return respondError(c, err)
		}
	}
	if req.OnlyMine != nil {
		h.session.SetOnlyMine(*req.OnlyMine)
	}
	return c.JSON(h.session.Snapshot())
}

// CreateDraft inserts a draft for freshly captured media
func (h *ContentHandler) CreateDraft(c *fiber.Ctx) error {
	var in controllers.DraftInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}

	draft, err := h.session.CreateDraft(c.UserContext(), in)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(draft)
}

// DeleteDraft discards the current draft
func (h *ContentHandler) DeleteDraft(c *fiber.Ctx) error {
	h.session.DeleteDraft()
	return c.SendStatus(fiber.StatusNoContent)
}

// Delete deletes a content item
func (h *ContentHandler) Delete(c *fiber.Ctx) error {
	if err := h.session.DeleteItem(c.UserContext(), c.Params("sk")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateDetails edits title, description and price of a content item
func (h *ContentHandler) UpdateDetails(c *fiber.Ctx) error {
	var details backend.FileDetails
	if err := c.BodyParser(&details); err != nil {
		return badRequest(c, "invalid request body")
	}

	item, err := h.session.UpdateDetails(c.UserContext(), c.Params("sk"), details)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(item)
}

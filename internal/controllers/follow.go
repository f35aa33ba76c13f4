package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/amaumene/chansync/internal/config"
	"github.com/amaumene/chansync/internal/models"
	"github.com/sirupsen/logrus"
)

// FollowBackend is the follow-graph part of the backend API
type FollowBackend interface {
	ListFollowRequests(ctx context.Context) ([]models.FollowRequest, error)
	GetAddedUsernames(ctx context.Context) ([]string, error)
	SendFollowRequest(ctx context.Context, toUsername string) (*models.FollowRequest, error)
	RespondFollowRequest(ctx context.Context, id string, accept bool) error
}

// UsernameCache stores the added-usernames list per user email
type UsernameCache interface {
	GetAddedUsernames(email string) (*models.AddedUsernames, error)
	SaveAddedUsernames(email string, usernames []string) error
}

// FollowController keeps the pending follow requests and the added-usernames
// list. The local cache only masks empty server responses; a non-empty server
// list always replaces it.
type FollowController struct {
	client FollowBackend
	cache  UsernameCache
	email  string
	logger *logrus.Logger

	mu       sync.RWMutex
	requests []models.FollowRequest
	added    []string
}

// NewFollowController creates a new follow controller
func NewFollowController(cfg *config.Config, client FollowBackend, cache UsernameCache, logger *logrus.Logger) *FollowController {
	return &FollowController{
		client:   client,
		cache:    cache,
		email:    cfg.UserEmail,
		logger:   logger,
		requests: []models.FollowRequest{},
		added:    []string{},
	}
}

// Refresh reloads pending requests and added usernames
func (c *FollowController) Refresh(ctx context.Context) error {
	var errs []error

	requests, err := c.client.ListFollowRequests(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		pending := make([]models.FollowRequest, 0, len(requests))
		for _, r := range requests {
			if r.Status == "" || r.Status == models.FollowRequestPending {
				pending = append(pending, r)
			}
		}
		c.mu.Lock()
		c.requests = pending
		c.mu.Unlock()
	}

	added, err := c.client.GetAddedUsernames(ctx)
	if err != nil {
		errs = append(errs, err)
		added = nil
	}
	added = c.maskEmpty(added)

	c.mu.Lock()
	c.added = added
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"pending_requests": len(c.Requests()),
		"added_usernames":  len(added),
	}).Debug("Refreshed follow graph")

	return errors.Join(errs...)
}

// maskEmpty substitutes the cached list for an empty server response and
// stores non-empty responses
func (c *FollowController) maskEmpty(fromServer []string) []string {
	if len(fromServer) > 0 {
		if err := c.cache.SaveAddedUsernames(c.email, fromServer); err != nil {
			c.logger.WithError(err).Warn("Failed to cache added usernames")
		}
		return fromServer
	}

	cached, err := c.cache.GetAddedUsernames(c.email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			c.logger.WithError(err).Warn("Failed to read cached added usernames")
		}
		return []string{}
	}
	if len(cached.Usernames) > 0 {
		c.logger.WithField("count", len(cached.Usernames)).Debug("Using cached added usernames")
	}
	return cached.Usernames
}

// Requests returns the pending follow requests
func (c *FollowController) Requests() []models.FollowRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.FollowRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// AddedUsernames returns the usernames the user has added
func (c *FollowController) AddedUsernames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.added))
	copy(out, c.added)
	return out
}

// Accept accepts a pending follow request
func (c *FollowController) Accept(ctx context.Context, id string) error {
	return c.respond(ctx, id, true)
}

// Decline declines a pending follow request
func (c *FollowController) Decline(ctx context.Context, id string) error {
	return c.respond(ctx, id, false)
}

func (c *FollowController) respond(ctx context.Context, id string, accept bool) error {
	if err := c.client.RespondFollowRequest(ctx, id, accept); err != nil {
		return err
	}

	c.mu.Lock()
	remaining := make([]models.FollowRequest, 0, len(c.requests))
	for _, r := range c.requests {
		if r.ID != id {
			remaining = append(remaining, r)
		}
	}
	c.requests = remaining
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"id":       id,
		"accepted": accept,
	}).Info("Responded to follow request")
	return nil
}

// AddUsername sends a follow request to username
func (c *FollowController) AddUsername(ctx context.Context, username string) (*models.FollowRequest, error) {
	username = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	req, err := c.client.SendFollowRequest(ctx, username)
	if err != nil {
		return nil, err
	}

	c.logger.WithField("username", username).Info("Sent follow request")
	return req, nil
}

package controllers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amaumene/chansync/internal/models"
	"github.com/sirupsen/logrus"
)

// InboxBackend is the notifications part of the backend API
type InboxBackend interface {
	ListNotifications(ctx context.Context) ([]models.Notification, error)
	CreateNotification(ctx context.Context, n models.Notification) (*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// InboxController keeps the user's notifications, newest first
type InboxController struct {
	client InboxBackend
	logger *logrus.Logger

	mu            sync.RWMutex
	notifications []models.Notification
}

// NewInboxController creates a new inbox controller
func NewInboxController(client InboxBackend, logger *logrus.Logger) *InboxController {
	return &InboxController{
		client:        client,
		logger:        logger,
		notifications: []models.Notification{},
	}
}

// Refresh reloads the inbox
func (c *InboxController) Refresh(ctx context.Context) error {
	notifications, err := c.client.ListNotifications(ctx)
	if err != nil {
		return err
	}
	sortNotifications(notifications)

	c.mu.Lock()
	c.notifications = notifications
	c.mu.Unlock()

	c.logger.WithField("count", len(notifications)).Debug("Refreshed inbox")
	return nil
}

// Notifications returns the inbox, newest first
func (c *InboxController) Notifications() []models.Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Notification, len(c.notifications))
	copy(out, c.notifications)
	return out
}

// UnreadCount returns the number of unread notifications
func (c *InboxController) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	unread := 0
	for _, n := range c.notifications {
		if !n.Read {
			unread++
		}
	}
	return unread
}

// MarkRead marks a notification as read
func (c *InboxController) MarkRead(ctx context.Context, id string) error {
	if err := c.client.MarkNotificationRead(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifications {
		if c.notifications[i].ID == id {
			c.notifications[i].Read = true
		}
	}
	return nil
}

// Notify creates a notification and adds it to the local inbox
func (c *InboxController) Notify(ctx context.Context, n models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	created, err := c.client.CreateNotification(ctx, n)
	if err != nil {
		return err
	}
	if created == nil || created.ID == "" {
		created = &n
	}

	c.mu.Lock()
	c.notifications = append([]models.Notification{*created}, c.notifications...)
	sortNotifications(c.notifications)
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"type":  created.Type,
		"title": created.Title,
	}).Info("Created notification")
	return nil
}

func sortNotifications(notifications []models.Notification) {
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
}

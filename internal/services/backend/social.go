package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/amaumene/chansync/internal/models"
)

type usernamesResponse struct {
	Usernames []string `json:"usernames"`
}

type followRequestsResponse struct {
	FollowRequests []models.FollowRequest `json:"followRequests"`
}

type notificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
}

type sendFollowRequest struct {
	FromEmail  string `json:"fromEmail"`
	ToUsername string `json:"toUsername"`
}

// SearchUsernames searches users by username
func (c *Client) SearchUsernames(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("query", query)

	var resp usernamesResponse
	if err := c.doRequest(ctx, http.MethodGet, "/users/search", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to search usernames: %w", err)
	}
	return resp.Usernames, nil
}

// GetAddedUsernames returns the usernames the user has added
func (c *Client) GetAddedUsernames(ctx context.Context) ([]string, error) {
	var resp usernamesResponse
	path := "/users/" + url.PathEscape(c.userEmail) + "/added-usernames"
	if err := c.doRequest(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get added usernames: %w", err)
	}
	return resp.Usernames, nil
}

// ListFollowRequests returns follow requests addressed to the user
func (c *Client) ListFollowRequests(ctx context.Context) ([]models.FollowRequest, error) {
	params := url.Values{}
	params.Set("userEmail", c.userEmail)

	var resp followRequestsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/follow-requests", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list follow requests: %w", err)
	}
	return resp.FollowRequests, nil
}

// SendFollowRequest asks to follow a user
func (c *Client) SendFollowRequest(ctx context.Context, toUsername string) (*models.FollowRequest, error) {
	var created models.FollowRequest
	req := sendFollowRequest{FromEmail: c.userEmail, ToUsername: toUsername}
	if err := c.doRequest(ctx, http.MethodPost, "/follow-requests", nil, req, &created); err != nil {
		return nil, fmt.Errorf("failed to send follow request: %w", err)
	}
	return &created, nil
}

// RespondFollowRequest accepts or declines a follow request
func (c *Client) RespondFollowRequest(ctx context.Context, id string, accept bool) error {
	action := "decline"
	if accept {
		action = "accept"
	}
	path := "/follow-requests/" + url.PathEscape(id) + "/" + action
	if err := c.doRequest(ctx, http.MethodPost, path, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to %s follow request: %w", action, err)
	}
	return nil
}

// ListNotifications returns the user's inbox
func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	params := url.Values{}
	params.Set("userEmail", c.userEmail)

	var resp notificationsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/notifications", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return resp.Notifications, nil
}

// CreateNotification adds an entry to the user's inbox
func (c *Client) CreateNotification(ctx context.Context, n models.Notification) (*models.Notification, error) {
	if n.UserEmail == "" {
		n.UserEmail = c.userEmail
	}
	var created models.Notification
	if err := c.doRequest(ctx, http.MethodPost, "/notifications", nil, n, &created); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return &created, nil
}

// MarkNotificationRead marks an inbox entry as read
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	path := "/notifications/" + url.PathEscape(id) + "/read"
	if err := c.doRequest(ctx, http.MethodPut, path, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/amaumene/chansync/internal/models"
)

// checkStreamFileRequest is the body of POST /files/check-stream-file
type checkStreamFileRequest struct {
	UserEmail string `json:"userEmail"`
	StreamKey string `json:"streamKey"`
}

// FileDetails are the user-editable fields of a content item
type FileDetails struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       *float64 `json:"price,omitempty"`
}

// CheckStreamFile reports the processing status of a live-capture file
func (c *Client) CheckStreamFile(ctx context.Context, streamKey string) (*models.StreamFileStatus, error) {
	var status models.StreamFileStatus
	req := checkStreamFileRequest{UserEmail: c.userEmail, StreamKey: streamKey}
	if err := c.doRequest(ctx, http.MethodPost, "/files/check-stream-file", nil, req, &status); err != nil {
		return nil, fmt.Errorf("failed to check stream file: %w", err)
	}
	return &status, nil
}

// DeleteFile deletes a content item on the server
func (c *Client) DeleteFile(ctx context.Context, item models.ContentItem) error {
	params := url.Values{}
	params.Set("userEmail", c.userEmail)
	params.Set("fileName", item.FileName)
	if err := c.doRequest(ctx, http.MethodDelete, "/files/"+url.PathEscape(item.SK), params, nil, nil); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", item.SK, err)
	}
	return nil
}

// UpdateFileDetails updates title, description and price of a content item
func (c *Client) UpdateFileDetails(ctx context.Context, sk string, details FileDetails) error {
	path := "/files/" + url.PathEscape(sk) + "/details"
	if err := c.doRequest(ctx, http.MethodPut, path, nil, details, nil); err != nil {
		return fmt.Errorf("failed to update file details: %w", err)
	}
	return nil
}

package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/amaumene/chansync/internal/models"
	"github.com/sirupsen/logrus"
)

// ContentQuery holds the parameters of a channel content listing
type ContentQuery struct {
	ChannelName        string
	CreatorEmail       string
	ViewerEmail        string // optional
	Limit              int
	NextToken          string // optional, opaque
	ShowPrivateContent bool
}

func (q ContentQuery) values() url.Values {
	params := url.Values{}
	params.Set("channelName", q.ChannelName)
	params.Set("creatorEmail", q.CreatorEmail)
	if q.ViewerEmail != "" {
		params.Set("viewerEmail", q.ViewerEmail)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.NextToken != "" {
		params.Set("nextToken", q.NextToken)
	}
	params.Set("showPrivateContent", strconv.FormatBool(q.ShowPrivateContent))
	return params
}

// FetchContent fetches one page of channel content. A page with zero items is
// a valid result, not an error.
func (c *Client) FetchContent(ctx context.Context, q ContentQuery) (*models.ContentPage, error) {
	if q.ChannelName == "" {
		return nil, fmt.Errorf("channel name is required")
	}

	var page models.ContentPage
	path := "/channels/" + url.PathEscape(q.ChannelName) + "/content"
	if err := c.doRequest(ctx, http.MethodGet, path, q.values(), nil, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}

	// No token means no further pages regardless of the flag
	if page.NextToken == "" {
		page.HasMore = false
	}

	c.logger.WithFields(logrus.Fields{
		"channel":  q.ChannelName,
		"count":    len(page.Items),
		"has_more": page.HasMore,
	}).Debug("Fetched content page")

	return &page, nil
}

// GetChannel fetches channel metadata
func (c *Client) GetChannel(ctx context.Context, channelName string) (*models.ChannelInfo, error) {
	var info models.ChannelInfo
	path := "/channels/" + url.PathEscape(channelName)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, nil, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch channel: %w", err)
	}
	if info.Name == "" {
		info.Name = channelName
	}
	return &info, nil
}

package models

import (
	"path"
	"strings"
	"time"

	"github.com/amaumene/chansync/internal/utils"
	"github.com/google/uuid"
)

// DraftKeyPrefix marks client-generated placeholder keys
const DraftKeyPrefix = "local-"

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".m4v":  true,
	".m3u8": true,
	".webm": true,
	".mkv":  true,
}

// ContentItem is a piece of playable media belonging to a channel
type ContentItem struct {
	SK       string `json:"SK"`
	FileName string `json:"fileName"`

	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Category    Category `json:"category,omitempty"`

	HLSURL       string `json:"hlsUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`

	CreatedAt string `json:"createdAt,omitempty"`
	Airdate   string `json:"airdate,omitempty"` // future-scheduled publish time

	IsVisible         *bool  `json:"isVisible,omitempty"`
	CreatorUsername   string `json:"creatorUsername,omitempty"`
	IsPrivateUsername *bool  `json:"isPrivateUsername,omitempty"`

	// Server ids used to pair a draft with its processed server item
	FileID    string `json:"fileId,omitempty"`
	UploadID  string `json:"uploadId,omitempty"`
	StreamKey string `json:"streamKey,omitempty"`

	// Only set on drafts not yet confirmed by the server
	LocalFileURL string `json:"localFileURL,omitempty"`
}

// NewDraft creates a draft for freshly captured media with a placeholder key
func NewDraft(localFile, fileName string) ContentItem {
	if fileName == "" {
		fileName = path.Base(localFile)
	}
	return ContentItem{
		SK:           DraftKeyPrefix + uuid.NewString(),
		FileName:     fileName,
		Category:     CategoryVideo,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		LocalFileURL: localFile,
	}
}

// ID is the key used for list diffing
func (c ContentItem) ID() string {
	return c.SK
}

// IsDraft reports whether the item only exists locally
func (c ContentItem) IsDraft() bool {
	return c.LocalFileURL != ""
}

// IsVideo reports whether the item is a video. Items without a category are
// classified by file extension.
func (c ContentItem) IsVideo() bool {
	switch Category(strings.ToLower(strings.TrimSpace(string(c.Category)))) {
	case CategoryVideo, CategoryVideos:
		return true
	case "":
		return videoExtensions[strings.ToLower(path.Ext(c.FileName))]
	default:
		return false
	}
}

// HasThumbnail reports whether the server has produced a thumbnail
func (c ContentItem) HasThumbnail() bool {
	return strings.TrimSpace(c.ThumbnailURL) != ""
}

// HasHLS reports whether transcoding has finished
func (c ContentItem) HasHLS() bool {
	return strings.TrimSpace(c.HLSURL) != ""
}

// IsReady reports whether both thumbnail and HLS are present
func (c ContentItem) IsReady() bool {
	return c.HasThumbnail() && c.HasHLS()
}

// IsPrivate is true only when the private flag is explicitly set
func (c ContentItem) IsPrivate() bool {
	return c.IsPrivateUsername != nil && *c.IsPrivateUsername
}

// HasMetadata reports whether any user-entered metadata is present
func (c ContentItem) HasMetadata() bool {
	return strings.TrimSpace(c.Title) != "" ||
		strings.TrimSpace(c.Description) != "" ||
		utils.NormalizePrice(c.Price) != ""
}

// DisplayTitle returns the title shown to users
func (c ContentItem) DisplayTitle() string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return utils.CleanTitle(c.FileName)
}

// ContentPage is the result of one listing fetch
type ContentPage struct {
	Items     []ContentItem `json:"content"`
	NextToken string        `json:"nextToken,omitempty"`
	HasMore   bool          `json:"hasMore"`
}

// ChannelInfo is channel metadata refreshed alongside content
type ChannelInfo struct {
	Name          string `json:"channelName"`
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	CreatorEmail  string `json:"creatorEmail,omitempty"`
	FollowerCount int    `json:"followerCount"`
	IsLive        bool   `json:"isLive"`
	ThumbnailURL  string `json:"thumbnailUrl,omitempty"`
}

// StreamFileStatus is the processing status of a live-capture file
type StreamFileStatus struct {
	Exists       bool   `json:"exists"`
	HasHLSURL    bool   `json:"hasHlsUrl"`
	HasThumbnail bool   `json:"hasThumbnail"`
	IsVisible    bool   `json:"isVisible"`
	FileID       string `json:"fileId"`
	FileName     string `json:"fileName"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// FloatPtr returns a pointer to f
func FloatPtr(f float64) *float64 {
	return &f
}

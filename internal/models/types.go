package models

// Category is the server-assigned content category
type Category string

const (
	CategoryVideo  Category = "video"
	CategoryVideos Category = "videos"
	CategoryImage  Category = "image"
	CategoryAudio  Category = "audio"
)

// Visibility selects the public/private bucket in aggregated channel mode
type Visibility string

const (
	VisibilityAll     Visibility = "all"
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ChannelMode controls whether the visibility filter applies
type ChannelMode string

const (
	ChannelModeStandard   ChannelMode = "standard"
	ChannelModeAggregated ChannelMode = "aggregated"
)

// PollKind identifies the background loop that owns a PollSession
type PollKind string

const (
	PollKindReadiness PollKind = "readiness"
	PollKindRefresh   PollKind = "auto_refresh"
	PollKindCleanup   PollKind = "cleanup_sweep"
	PollKindSearch    PollKind = "search_debounce"
)

// ReadinessState is the state of the thumbnail/HLS readiness poller
type ReadinessState string

const (
	StateWaitingForThumbnail ReadinessState = "WAITING_FOR_THUMBNAIL"
	StateWaitingForHLS       ReadinessState = "WAITING_FOR_HLS"
	StateDone                ReadinessState = "DONE"
)

// FollowRequestStatus represents the state of a follow request
type FollowRequestStatus string

const (
	FollowRequestPending  FollowRequestStatus = "pending"
	FollowRequestAccepted FollowRequestStatus = "accepted"
	FollowRequestDeclined FollowRequestStatus = "declined"
)

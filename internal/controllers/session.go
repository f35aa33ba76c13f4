package controllers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"bitbucket.org/creachadair/stringset"
	"github.com/amaumene/chansync/internal/config"
	"github.com/amaumene/chansync/internal/metrics"
	"github.com/amaumene/chansync/internal/models"
	"github.com/amaumene/chansync/internal/reconcile"
	"github.com/amaumene/chansync/internal/services/backend"
	"github.com/amaumene/chansync/internal/services/probe"
	"github.com/sirupsen/logrus"
)

var (
	// ErrItemNotFound is returned when an SK is not in the displayed list
	ErrItemNotFound = errors.New("item not found")
	// ErrInvalidVisibility is returned for an unknown visibility filter
	ErrInvalidVisibility = errors.New("invalid visibility")
)

// ContentBackend is the part of the backend API a Session uses
type ContentBackend interface {
	FetchContent(ctx context.Context, q backend.ContentQuery) (*models.ContentPage, error)
	GetChannel(ctx context.Context, channelName string) (*models.ChannelInfo, error)
	CheckStreamFile(ctx context.Context, streamKey string) (*models.StreamFileStatus, error)
	DeleteFile(ctx context.Context, item models.ContentItem) error
	UpdateFileDetails(ctx context.Context, sk string, details backend.FileDetails) error
}

// DraftStore persists the draft slot across restarts
type DraftStore interface {
	SaveDraft(email string, draft *models.ContentItem) error
	GetDraft(email string) (*models.ContentItem, error)
	DeleteDraft(email string) error
}

// Notifier posts inbox notifications
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// DraftInput describes freshly captured or uploaded media
type DraftInput struct {
	LocalFile   string   `json:"localFile"`
	FileName    string   `json:"fileName"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       *float64 `json:"price,omitempty"`
	UploadID    string   `json:"uploadId"`
	FileID      string   `json:"fileId"`
	StreamKey   string   `json:"streamKey"`
}

// Snapshot is a consistent copy of the session state
type Snapshot struct {
	Items      []models.ContentItem `json:"items"`
	Own        []models.ContentItem `json:"own"`
	Draft      *models.ContentItem  `json:"draft,omitempty"`
	Channel    *models.ChannelInfo  `json:"channel,omitempty"`
	HasMore    bool                 `json:"hasMore"`
	Loaded     bool                 `json:"loaded"`
	OnlyMine   bool                 `json:"onlyMine"`
	Visibility models.Visibility    `json:"visibility"`
}

// Session owns the displayed list of one channel. All state is guarded by
// mu; every poller reads and writes it through Session methods.
type Session struct {
	cfg      *config.Config
	client   ContentBackend
	drafts   DraftStore
	prober   probe.Prober
	notifier Notifier
	registry *Registry
	metrics  *metrics.Metrics
	logger   *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	view        reconcile.View
	fetched     []models.ContentItem
	draft       *models.ContentItem
	filter      reconcile.Filter
	channel     *models.ChannelInfo
	nextToken   string
	hasMore     bool
	loaded      bool
	loadingMore bool
	// SKs deleted through this session; late pages must not bring them back
	deleted stringset.Set

	// Draft persistence runs outside mu, applied in mutation order
	draftDirty   bool
	draftSeq     uint64
	persistMu    sync.Mutex
	persistedSeq uint64
}

// draftState is the draft slot as of one mutation
type draftState struct {
	seq   uint64
	draft *models.ContentItem
}

// NewSession creates a session for the configured channel
func NewSession(
	cfg *config.Config,
	client ContentBackend,
	drafts DraftStore,
	prober probe.Prober,
	notifier Notifier,
	registry *Registry,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:      cfg,
		client:   client,
		drafts:   drafts,
		prober:   prober,
		notifier: notifier,
		registry: registry,
		metrics:  m,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		deleted:  stringset.New(),
		filter: reconcile.Filter{
			Mode:       models.ChannelMode(cfg.ChannelMode),
			Visibility: models.VisibilityAll,
			Viewer:     cfg.Username,
		},
	}
}

func (s *Session) query(nextToken string, limit int) backend.ContentQuery {
	return backend.ContentQuery{
		ChannelName:        s.cfg.ChannelName,
		CreatorEmail:       s.cfg.CreatorEmail,
		ViewerEmail:        s.cfg.UserEmail,
		Limit:              limit,
		NextToken:          nextToken,
		ShowPrivateContent: s.filter.Mode == models.ChannelModeAggregated,
	}
}

func (s *Session) keyPrefix() string {
	return s.cfg.ChannelName + "/"
}

func (s *Session) readinessKey(sk string) string {
	return s.keyPrefix() + "readiness/" + sk
}

func (s *Session) refreshKey() string {
	return s.keyPrefix() + "refresh"
}

func (s *Session) sweepKey() string {
	return s.keyPrefix() + "sweep"
}

// LoadInitial fetches the first page. Errors are returned for display;
// cancellation errors satisfy backend.IsCancellation and must not be shown.
// On success the auto-refresh poller starts and the short-clip sweep runs once.
func (s *Session) LoadInitial(ctx context.Context) error {
	s.restoreDraft()

	page, err := s.client.FetchContent(ctx, s.query("", s.cfg.PageSize))
	if err != nil {
		if backend.IsCancellation(err) {
			return err
		}
		if !backend.IsDecodeError(err) {
			s.metrics.FetchErrors.WithLabelValues("initial_load").Inc()
			return fmt.Errorf("failed to load channel content: %w", err)
		}
		s.metrics.DecodeErrors.WithLabelValues("initial_load").Inc()
		s.logger.WithError(err).Warn("Malformed content page, showing empty list")
		page = &models.ContentPage{}
	}

	s.mu.Lock()
	s.fetched = s.withoutDeletedLocked(page.Items)
	s.nextToken = page.NextToken
	s.hasMore = page.HasMore
	s.loaded = true
	res := s.reconcileLocked()
	draft := s.draft
	s.unlockAndPersist()

	s.handleResult(ctx, res)

	s.logger.WithFields(logrus.Fields{
		"channel": s.cfg.ChannelName,
		"items":   len(res.View.Items),
	}).Info("Loaded channel content")

	if draft != nil && !s.registry.Running(s.readinessKey(draft.SK)) {
		s.startReadiness(*draft)
	}
	s.StartAutoRefresh()
	if s.cfg.ShortClipCleanup {
		s.StartSweep()
	}
	return nil
}

// restoreDraft loads a draft persisted by a previous run. Drafts whose local
// file is gone are discarded.
func (s *Session) restoreDraft() {
	if s.drafts == nil {
		return
	}

	s.mu.Lock()
	hasDraft := s.draft != nil
	s.mu.Unlock()
	if hasDraft {
		return
	}

	s.persistMu.Lock()
	draft, err := s.drafts.GetDraft(s.cfg.UserEmail)
	if err != nil {
		s.persistMu.Unlock()
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.WithError(err).Warn("Failed to read persisted draft")
		}
		return
	}
	if _, err := os.Stat(localPath(draft.LocalFileURL)); err != nil {
		if err := s.drafts.DeleteDraft(s.cfg.UserEmail); err != nil {
			s.logger.WithError(err).Warn("Failed to delete persisted draft")
		}
		s.persistMu.Unlock()
		s.logger.WithField("sk", draft.SK).Info("Discarding persisted draft without local file")
		return
	}
	s.persistMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft != nil {
		return
	}
	s.draft = draft
	s.logger.WithField("sk", draft.SK).Info("Restored persisted draft")
}

// Refresh reloads the first page and resets pagination (pull-to-refresh).
// On failure the displayed list is left unchanged.
func (s *Session) Refresh(ctx context.Context) error {
	page, err := s.client.FetchContent(ctx, s.query("", s.cfg.PageSize))
	if err != nil {
		if backend.IsDecodeError(err) {
			s.metrics.DecodeErrors.WithLabelValues("refresh").Inc()
			s.logger.WithError(err).Warn("Malformed content page, keeping list")
			return nil
		}
		if !backend.IsCancellation(err) {
			s.metrics.FetchErrors.WithLabelValues("refresh").Inc()
		}
		return fmt.Errorf("failed to refresh channel content: %w", err)
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return ctx.Err()
	}
	s.fetched = s.withoutDeletedLocked(page.Items)
	s.nextToken = page.NextToken
	s.hasMore = page.HasMore
	s.loaded = true
	res := s.reconcileLocked()
	s.unlockAndPersist()

	s.handleResult(ctx, res)
	return nil
}

// LoadMore fetches the next page. A failed fetch stops pagination silently;
// the caller may trigger it again. It reports whether more pages remain.
func (s *Session) LoadMore(ctx context.Context) bool {
	s.mu.Lock()
	if !s.hasMore || s.nextToken == "" || s.loadingMore {
		hasMore := s.hasMore
		s.mu.Unlock()
		return hasMore
	}
	token := s.nextToken
	s.loadingMore = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loadingMore = false
		s.mu.Unlock()
	}()

	page, err := s.client.FetchContent(ctx, s.query(token, s.cfg.PageSize))
	if err != nil {
		switch {
		case backend.IsDecodeError(err):
			s.metrics.DecodeErrors.WithLabelValues("load_more").Inc()
			s.logger.WithError(err).Warn("Malformed content page, keeping list")
		case !backend.IsCancellation(err):
			s.metrics.FetchErrors.WithLabelValues("load_more").Inc()
			s.logger.WithError(err).Warn("Failed to load next page")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.hasMore
	}

	s.mu.Lock()
	// A refresh in between reset pagination; this page is stale
	if s.nextToken != token || ctx.Err() != nil {
		hasMore := s.hasMore
		s.mu.Unlock()
		return hasMore
	}
	s.fetched = append(s.fetched, s.withoutDeletedLocked(page.Items)...)
	s.nextToken = page.NextToken
	s.hasMore = page.HasMore
	res := s.reconcileLocked()
	hasMore := s.hasMore
	s.unlockAndPersist()

	s.handleResult(ctx, res)
	return hasMore
}

// CreateDraft inserts a draft for freshly captured media and starts polling
// for its processed server counterpart. An existing draft is discarded.
func (s *Session) CreateDraft(ctx context.Context, in DraftInput) (models.ContentItem, error) {
	if strings.TrimSpace(in.LocalFile) == "" {
		return models.ContentItem{}, errors.New("local file is required")
	}

	draft := models.NewDraft(in.LocalFile, in.FileName)
	draft.Title = in.Title
	draft.Description = in.Description
	draft.Price = in.Price
	draft.UploadID = in.UploadID
	draft.FileID = in.FileID
	draft.StreamKey = in.StreamKey

	s.mu.Lock()
	previous := s.draft
	s.draft = &draft
	s.draftDirty = true
	res := s.reconcileLocked()
	s.unlockAndPersist()

	if previous != nil {
		s.registry.Cancel(s.readinessKey(previous.SK))
		removeLocalFile(previous.LocalFileURL, s.logger)
	}
	s.handleResult(ctx, res)

	s.logger.WithFields(logrus.Fields{
		"sk":        draft.SK,
		"file_name": draft.FileName,
	}).Info("Created draft")

	if res.Draft != nil && !res.Draft.IsReady() {
		s.startReadiness(*res.Draft)
	}
	return draft, nil
}

// DeleteDraft discards the draft and its local file. Deleting when no draft
// exists is a no-op.
func (s *Session) DeleteDraft() {
	s.mu.Lock()
	if s.draft == nil {
		s.mu.Unlock()
		return
	}
	draft := *s.draft
	s.draft = nil
	s.draftDirty = true
	s.reconcileLocked()
	s.unlockAndPersist()

	s.registry.Cancel(s.readinessKey(draft.SK))
	removeLocalFile(draft.LocalFileURL, s.logger)
	s.logger.WithField("sk", draft.SK).Info("Deleted draft")
}

// SetOnlyMine toggles the "only mine" filter from the cached own list
func (s *Session) SetOnlyMine(onlyMine bool) reconcile.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.OnlyMine = onlyMine
	s.view = s.view.WithOnlyMine(onlyMine)
	s.metrics.DisplayedItems.Set(float64(len(s.view.Items)))
	return s.view
}

// SetVisibility changes the public/private filter and recomputes the view
func (s *Session) SetVisibility(v models.Visibility) (reconcile.View, error) {
	switch v {
	case models.VisibilityAll, models.VisibilityPublic, models.VisibilityPrivate:
	default:
		return reconcile.View{}, fmt.Errorf("%w: %q", ErrInvalidVisibility, v)
	}

	s.mu.Lock()
	s.filter.Visibility = v
	res := s.reconcileLocked()
	s.unlockAndPersist()

	s.handleResult(s.ctx, res)
	return res.View, nil
}

// DeleteItem removes an item optimistically and deletes it on the server. On
// failure the item is restored and the error returned for display.
func (s *Session) DeleteItem(ctx context.Context, sk string) error {
	s.mu.Lock()
	item, ok := findItem(s.view.Visible, sk)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrItemNotFound, sk)
	}
	if item.IsDraft() {
		s.mu.Unlock()
		s.DeleteDraft()
		return nil
	}
	s.deleted.Add(sk)
	s.fetched = withoutItem(s.fetched, sk)
	s.reconcileLocked()
	s.unlockAndPersist()

	if err := s.client.DeleteFile(ctx, item); err != nil {
		s.mu.Lock()
		s.deleted.Discard(sk)
		if _, present := findItem(s.fetched, sk); !present {
			s.fetched = append(s.fetched, item)
		}
		res := s.reconcileLocked()
		s.unlockAndPersist()
		s.handleResult(s.ctx, res)

		s.logger.WithError(err).WithField("sk", sk).Warn("Failed to delete item, restored")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"sk":    sk,
		"title": item.DisplayTitle(),
	}).Info("Deleted item")
	return nil
}

// UpdateDetails edits title, description and price. Draft edits stay local
// until the server item takes over.
func (s *Session) UpdateDetails(ctx context.Context, sk string, details backend.FileDetails) (models.ContentItem, error) {
	s.mu.Lock()
	if s.draft != nil && s.draft.SK == sk {
		s.draft.Title = details.Title
		s.draft.Description = details.Description
		s.draft.Price = details.Price
		s.draftDirty = true
		updated := *s.draft
		res := s.reconcileLocked()
		s.unlockAndPersist()
		s.handleResult(ctx, res)
		return updated, nil
	}
	if _, ok := findItem(s.view.Visible, sk); !ok {
		s.mu.Unlock()
		return models.ContentItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, sk)
	}
	s.mu.Unlock()

	if err := s.client.UpdateFileDetails(ctx, sk, details); err != nil {
		return models.ContentItem{}, err
	}

	// Views handed out earlier share backing arrays, so edit copies
	apply := func(items []models.ContentItem) []models.ContentItem {
		out := make([]models.ContentItem, len(items))
		copy(out, items)
		for i := range out {
			if out[i].SK == sk {
				out[i].Title = details.Title
				out[i].Description = details.Description
				out[i].Price = details.Price
			}
		}
		return out
	}

	s.mu.Lock()
	s.fetched = apply(s.fetched)
	s.view.Visible = apply(s.view.Visible)
	res := s.reconcileLocked()
	updated, _ := findItem(res.View.Visible, sk)
	s.unlockAndPersist()

	s.handleResult(ctx, res)
	return updated, nil
}

// View returns the current reconciled view
func (s *Session) View() reconcile.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Draft returns a copy of the current draft
func (s *Session) Draft() (models.ContentItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return models.ContentItem{}, false
	}
	return *s.draft, true
}

// Snapshot returns a consistent copy of the session state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Items:      s.view.Items,
		Own:        s.view.Own,
		HasMore:    s.hasMore,
		Loaded:     s.loaded,
		OnlyMine:   s.filter.OnlyMine,
		Visibility: s.filter.Visibility,
	}
	if s.draft != nil {
		d := *s.draft
		snap.Draft = &d
	}
	if s.channel != nil {
		c := *s.channel
		snap.Channel = &c
	}
	if snap.Items == nil {
		snap.Items = []models.ContentItem{}
	}
	if snap.Own == nil {
		snap.Own = []models.ContentItem{}
	}
	return snap
}

// Close cancels every loop owned by the session
func (s *Session) Close() {
	s.cancel()
	cancelled := s.registry.CancelPrefix(s.keyPrefix())
	s.logger.WithFields(logrus.Fields{
		"channel": s.cfg.ChannelName,
		"loops":   cancelled,
	}).Debug("Closed session")
}

// reconcileLocked recomputes the view from the stored inputs. The previous
// unfiltered list serves as the displayed list for the merge.
func (s *Session) reconcileLocked() reconcile.Result {
	res := reconcile.Reconcile(reconcile.Input{
		Draft:     s.draft,
		Fetched:   s.fetched,
		Displayed: s.view.Visible,
		Filter:    s.filter,
	})
	s.view = res.View
	s.draft = res.Draft
	if res.Retired != nil {
		s.draftDirty = true
	}

	s.metrics.Reconciliations.Inc()
	s.metrics.DisplayedItems.Set(float64(len(res.View.Items)))
	return res
}

// unlockAndPersist releases mu. When a mutation under mu changed the draft
// slot, the new slot is then written to the draft store.
func (s *Session) unlockAndPersist() {
	if !s.draftDirty || s.drafts == nil {
		s.draftDirty = false
		s.mu.Unlock()
		return
	}

	s.draftDirty = false
	s.draftSeq++
	state := draftState{seq: s.draftSeq}
	if s.draft != nil {
		draft := *s.draft
		state.draft = &draft
	}
	s.mu.Unlock()

	s.persistDraft(state)
}

// persistDraft writes state unless a newer state was already written
func (s *Session) persistDraft(state draftState) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if state.seq <= s.persistedSeq {
		return
	}
	s.persistedSeq = state.seq

	if state.draft == nil {
		if err := s.drafts.DeleteDraft(s.cfg.UserEmail); err != nil {
			s.logger.WithError(err).Warn("Failed to delete persisted draft")
		}
		return
	}
	if err := s.drafts.SaveDraft(s.cfg.UserEmail, state.draft); err != nil {
		s.logger.WithError(err).Warn("Failed to persist draft")
	}
}

// withoutDeletedLocked drops items this session already deleted
func (s *Session) withoutDeletedLocked(items []models.ContentItem) []models.ContentItem {
	if s.deleted.Empty() {
		return items
	}
	out := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		if !s.deleted.Contains(item.SK) {
			out = append(out, item)
		}
	}
	return out
}

// handleResult performs the side effects of a pass that retired the draft
func (s *Session) handleResult(ctx context.Context, res reconcile.Result) {
	if res.Retired == nil {
		return
	}

	removeLocalFile(res.Retired.LocalFileURL, s.logger)
	s.metrics.DraftsRetired.Inc()

	s.logger.WithFields(logrus.Fields{
		"draft": res.Retired.SK,
		"sk":    res.Replacement.SK,
	}).Info("Draft replaced by processed server item")

	s.notifyReady(ctx, *res.Replacement)
	s.registry.Cancel(s.readinessKey(res.Retired.SK))
}

func (s *Session) notifyReady(ctx context.Context, item models.ContentItem) {
	if s.notifier == nil || ctx.Err() != nil {
		return
	}
	err := s.notifier.Notify(ctx, models.Notification{
		UserEmail: s.cfg.UserEmail,
		Type:      models.NotificationVideoReady,
		Title:     "Your video is ready",
		Message:   item.DisplayTitle() + " has finished processing.",
		ContentSK: item.SK,
	})
	if err != nil && !backend.IsCancellation(err) {
		s.logger.WithError(err).WithField("sk", item.SK).Warn("Failed to create ready notification")
	}
}

func findItem(items []models.ContentItem, sk string) (models.ContentItem, bool) {
	for _, item := range items {
		if item.SK == sk {
			return item, true
		}
	}
	return models.ContentItem{}, false
}

func withoutItem(items []models.ContentItem, sk string) []models.ContentItem {
	out := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		if item.SK != sk {
			out = append(out, item)
		}
	}
	return out
}

func localPath(fileURL string) string {
	return strings.TrimPrefix(fileURL, "file://")
}

// removeLocalFile deletes a draft's backing file. A missing file is not an error.
func removeLocalFile(fileURL string, logger *logrus.Logger) {
	path := localPath(fileURL)
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.WithError(err).WithField("path", path).Warn("Failed to delete draft file")
	}
}

package trackd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/trackd/internal/detect"
	"github.com/hazyhaar/trackd/internal/fetch"
	"github.com/hazyhaar/trackd/internal/notify"
	"github.com/hazyhaar/trackd/internal/scheduler"
	"github.com/hazyhaar/trackd/internal/store"
)

// Fetcher retrieves content for a tracker check. The production
// implementation is fetch.NewDispatcher over the static and rendered
// strategies; tests substitute stubs.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*fetch.Result, error)
}

// Service is the tracker engine: it owns the scheduler, runs the check
// cycle, and exposes the control operations the front-end calls.
type Service struct {
	store     *store.Store
	fetcher   Fetcher
	notifier  notify.Notifier
	scheduler *scheduler.Scheduler
	config    *Config
	logger    *slog.Logger
	locks     *keyedMutex
	now       func() time.Time
}

// New creates a Service. The notifier may be nil, in which case alerts are
// dropped (useful in tests exercising only persistence).
func New(st *store.Store, f Fetcher, n notify.Notifier, cfg *Config, logger *slog.Logger) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		store:    st,
		fetcher:  f,
		notifier: n,
		config:   cfg,
		logger:   logger,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
	svc.scheduler = scheduler.New(cfg.TickInterval, svc.runCycle, logger)
	return svc
}

// Start launches the background scheduler. Non-blocking.
func (svc *Service) Start(ctx context.Context) {
	go svc.scheduler.Run(ctx)
	svc.logger.Info("trackd: started", "tick", svc.config.TickInterval)
}

func (svc *Service) runCycle(ctx context.Context) {
	if err := svc.CheckAll(ctx); err != nil {
		svc.logger.Error("trackd: cycle failed", "error", err)
	}
}

// CheckAll runs one check cycle: every due, active tracker is fetched,
// compared, rescheduled, and the owner alerted on change or error. Due
// trackers are processed with bounded parallelism; one tracker failing
// never aborts the rest. Returns an error only when the due set itself
// cannot be loaded.
func (svc *Service) CheckAll(ctx context.Context) error {
	now := svc.now().UnixMilli()
	due, err := svc.store.ListDue(ctx, now)
	if err != nil {
		return fmt.Errorf("trackd: list due: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	svc.logger.Debug("trackd: cycle", "due", len(due))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.config.CycleConcurrency)
	for _, t := range due {
		g.Go(func() error {
			svc.checkTracker(gctx, t.ID)
			return nil
		})
	}
	return g.Wait()
}

// checkTracker evaluates one tracker under its per-tracker lock. All
// failures are absorbed here: fetch failures alert the owner and advance
// the schedule at the normal interval (a failed check must never leave the
// tracker permanently due), storage failures abandon this tick only.
func (svc *Service) checkTracker(ctx context.Context, id int64) {
	unlock := svc.locks.lock(id)
	defer unlock()

	// Re-read under the lock: a control action may have paused or deleted
	// the tracker while this check sat in the queue.
	t, err := svc.store.GetTracker(ctx, id)
	if err != nil {
		svc.logger.Error("trackd: load tracker", "id", id, "error", err)
		return
	}
	if t == nil || t.Status != store.StatusActive {
		return
	}

	res, err := svc.fetcher.Fetch(ctx, fetch.Request{URL: t.URL, Mode: t.Mode, Selector: t.Selector})
	next := svc.nextCheck(t)
	if err != nil {
		svc.logger.Warn("trackd: check failed", "id", t.ID, "url", t.URL, "error", err)
		svc.deliver(ctx, notify.Message{
			Owner: t.OwnerID,
			Text:  fmt.Sprintf("Error checking %s:\n%v", t.URL, err),
		})
		if err := svc.store.Reschedule(ctx, t.ID, next); err != nil {
			svc.logger.Error("trackd: reschedule", "id", t.ID, "error", err)
		}
		return
	}

	fingerprint := detect.Fingerprint(res.Content)
	if fingerprint == t.LastFingerprint {
		if err := svc.store.Reschedule(ctx, t.ID, next); err != nil {
			svc.logger.Error("trackd: reschedule", "id", t.ID, "error", err)
		}
		return
	}

	diff, err := detect.Diff(t.LastContent, res.Content, svc.config.DiffMaxLength)
	if err != nil {
		svc.logger.Error("trackd: diff", "id", t.ID, "error", err)
	}
	svc.deliver(ctx, notify.Message{
		Owner:   t.OwnerID,
		Text:    fmt.Sprintf("Change detected!\n%s\n\nDiff:\n%s", t.URL, diff),
		Capture: res.Capture,
	})

	content := truncate(res.Content, svc.config.MaxStoredContent)
	if err := svc.store.RecordChange(ctx, t.ID, fingerprint, content, next); err != nil {
		svc.logger.Error("trackd: record change", "id", t.ID, "error", err)
	}
	svc.logger.Info("trackd: change detected", "id", t.ID, "url", t.URL)
}

// Create validates the input, enforces the per-owner cap, and performs one
// synchronous fetch. A failed first fetch aborts creation with nothing
// persisted; a successful one seeds the fingerprint and retained content.
func (svc *Service) Create(ctx context.Context, ownerID int64, rawURL string, mode fetch.Mode, selector string, intervalSeconds int64) (*store.Tracker, error) {
	if intervalSeconds == 0 {
		intervalSeconds = int64(svc.config.DefaultCheckInterval.Seconds())
	}
	if err := validateTrackerInput(rawURL, mode, selector, intervalSeconds); err != nil {
		return nil, err
	}

	count, err := svc.store.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("trackd: count trackers: %w", err)
	}
	if count >= svc.config.MaxTrackersPerOwner {
		return nil, fmt.Errorf("%w: maximum %d per owner", ErrTrackerLimit, svc.config.MaxTrackersPerOwner)
	}

	res, err := svc.fetcher.Fetch(ctx, fetch.Request{URL: rawURL, Mode: mode, Selector: selector})
	if err != nil {
		return nil, fmt.Errorf("trackd: initial check failed: %w", err)
	}

	t := &store.Tracker{
		URL:             rawURL,
		OwnerID:         ownerID,
		Mode:            mode,
		Selector:        selector,
		IntervalSeconds: intervalSeconds,
		LastFingerprint: detect.Fingerprint(res.Content),
		LastContent:     truncate(res.Content, svc.config.MaxStoredContent),
		NextCheckAt:     svc.now().UnixMilli(),
		Status:          store.StatusActive,
	}
	if _, err := svc.store.InsertTracker(ctx, t); err != nil {
		return nil, fmt.Errorf("trackd: insert tracker: %w", err)
	}
	svc.logger.Info("trackd: tracker created", "id", t.ID, "url", t.URL, "mode", t.Mode, "owner", ownerID)
	return t, nil
}

// List returns the principal's trackers.
func (svc *Service) List(ctx context.Context, ownerID int64) ([]*store.Tracker, error) {
	return svc.store.ListByOwner(ctx, ownerID)
}

// Pause takes the tracker out of the due set until resumed.
func (svc *Service) Pause(ctx context.Context, principal, id int64) error {
	return svc.setStatus(ctx, principal, id, store.StatusPaused)
}

// Resume puts the tracker back into scheduling. A tracker whose check time
// passed while paused becomes due on the next tick.
func (svc *Service) Resume(ctx context.Context, principal, id int64) error {
	return svc.setStatus(ctx, principal, id, store.StatusActive)
}

func (svc *Service) setStatus(ctx context.Context, principal, id int64, status store.Status) error {
	unlock := svc.locks.lock(id)
	defer unlock()

	if _, err := svc.authorized(ctx, principal, id); err != nil {
		return err
	}
	ok, err := svc.store.SetStatus(ctx, id, status)
	if err != nil {
		return fmt.Errorf("trackd: set status: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	svc.logger.Info("trackd: status changed", "id", id, "status", status)
	return nil
}

// Delete removes the tracker permanently.
func (svc *Service) Delete(ctx context.Context, principal, id int64) error {
	unlock := svc.locks.lock(id)
	defer unlock()

	if _, err := svc.authorized(ctx, principal, id); err != nil {
		return err
	}
	ok, err := svc.store.DeleteTracker(ctx, id)
	if err != nil {
		return fmt.Errorf("trackd: delete tracker: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	svc.logger.Info("trackd: tracker deleted", "id", id)
	return nil
}

// Untrack removes all of the principal's trackers for a URL.
func (svc *Service) Untrack(ctx context.Context, ownerID int64, url string) error {
	n, err := svc.store.DeleteByURL(ctx, ownerID, url)
	if err != nil {
		return fmt.Errorf("trackd: untrack: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	svc.logger.Info("trackd: untracked", "url", url, "owner", ownerID, "removed", n)
	return nil
}

// CheckResult is the outcome of a manual check, reported directly to the
// caller instead of through the notification path.
type CheckResult struct {
	Changed bool   `json:"changed"`
	Diff    string `json:"diff,omitempty"`
	Capture []byte `json:"capture,omitempty"`
}

// CheckNow evaluates one tracker synchronously, outside the schedule. The
// schedule is not touched unless a change is found, in which case the new
// state is persisted exactly as a scheduled check would. The per-tracker
// lock makes a manual check and a concurrent cycle mutually exclusive.
func (svc *Service) CheckNow(ctx context.Context, principal, id int64) (*CheckResult, error) {
	unlock := svc.locks.lock(id)
	defer unlock()

	t, err := svc.authorized(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	res, err := svc.fetcher.Fetch(ctx, fetch.Request{URL: t.URL, Mode: t.Mode, Selector: t.Selector})
	if err != nil {
		return nil, err
	}

	fingerprint := detect.Fingerprint(res.Content)
	if fingerprint == t.LastFingerprint {
		return &CheckResult{Changed: false}, nil
	}

	diff, err := detect.Diff(t.LastContent, res.Content, svc.config.DiffMaxLength)
	if err != nil {
		return nil, fmt.Errorf("trackd: diff: %w", err)
	}
	svc.deliver(ctx, notify.Message{
		Owner:   t.OwnerID,
		Text:    fmt.Sprintf("Manual check detected changes!\n%s\n\nDiff:\n%s", t.URL, diff),
		Capture: res.Capture,
	})

	content := truncate(res.Content, svc.config.MaxStoredContent)
	if err := svc.store.RecordChange(ctx, t.ID, fingerprint, content, svc.nextCheck(t)); err != nil {
		return nil, fmt.Errorf("trackd: record change: %w", err)
	}
	return &CheckResult{Changed: true, Diff: diff, Capture: res.Capture}, nil
}

// Status returns the aggregate system report.
func (svc *Service) Status(ctx context.Context) (*store.Stats, error) {
	return svc.store.TrackerStats(ctx, svc.now().UnixMilli())
}

// --- Admin roster ---

// AddAdmin grants admin role to target. Owner-only.
func (svc *Service) AddAdmin(ctx context.Context, principal, target int64) error {
	if err := svc.requireOwner(ctx, principal); err != nil {
		return err
	}
	already, err := svc.store.IsAdmin(ctx, target)
	if err != nil {
		return err
	}
	if already {
		return fmt.Errorf("%w: user %d is already an admin", ErrInvalidInput, target)
	}
	if err := svc.store.AddAdmin(ctx, target, principal); err != nil {
		return err
	}
	svc.logger.Info("trackd: admin added", "user", target, "by", principal)
	return nil
}

// RemoveAdmin revokes admin role from target. Owner-only; the owner entry
// itself is never removable.
func (svc *Service) RemoveAdmin(ctx context.Context, principal, target int64) error {
	if err := svc.requireOwner(ctx, principal); err != nil {
		return err
	}
	owner, err := svc.store.IsOwner(ctx, target)
	if err != nil {
		return err
	}
	if owner {
		return fmt.Errorf("%w: cannot remove the owner", ErrInvalidInput)
	}
	ok, err := svc.store.RemoveAdmin(ctx, target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %d is not an admin", ErrNotFound, target)
	}
	svc.logger.Info("trackd: admin removed", "user", target, "by", principal)
	return nil
}

// Admins returns the roster.
func (svc *Service) Admins(ctx context.Context) ([]*store.Admin, error) {
	return svc.store.ListAdmins(ctx)
}

// IsAdmin reports whether the principal may use the service at all.
func (svc *Service) IsAdmin(ctx context.Context, principal int64) (bool, error) {
	return svc.store.IsAdmin(ctx, principal)
}

// IsOwner reports whether the principal is the seeded owner.
func (svc *Service) IsOwner(ctx context.Context, principal int64) (bool, error) {
	return svc.store.IsOwner(ctx, principal)
}

// --- helpers ---

// authorized loads the tracker and checks the principal may act on it:
// its owner always may, the service owner may act on any.
func (svc *Service) authorized(ctx context.Context, principal, id int64) (*store.Tracker, error) {
	t, err := svc.store.GetTracker(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("trackd: load tracker: %w", err)
	}
	if t == nil {
		return nil, ErrNotFound
	}
	if t.OwnerID == principal {
		return t, nil
	}
	owner, err := svc.store.IsOwner(ctx, principal)
	if err != nil {
		return nil, err
	}
	if !owner {
		return nil, ErrAccessDenied
	}
	return t, nil
}

func (svc *Service) requireOwner(ctx context.Context, principal int64) error {
	owner, err := svc.store.IsOwner(ctx, principal)
	if err != nil {
		return err
	}
	if !owner {
		return ErrAccessDenied
	}
	return nil
}

func (svc *Service) nextCheck(t *store.Tracker) int64 {
	return svc.now().Add(time.Duration(t.IntervalSeconds) * time.Second).UnixMilli()
}

func (svc *Service) deliver(ctx context.Context, msg notify.Message) {
	if svc.notifier == nil {
		return
	}
	if err := svc.notifier.Notify(ctx, msg); err != nil {
		svc.logger.Warn("trackd: notification failed", "owner", msg.Owner, "error", err)
	}
}

func truncate(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}

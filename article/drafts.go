package article

import (
	"context"
	"fmt"
	"time"

	"github.com/aldomucciarone59-web/mute-magazine/media"
)

// NewDraft is the article id of the draft of an unsaved article.
const NewDraft = "new"

// draftKey scopes pending uploads to one article draft of an editing
// session, so saving one article never settles another's uploads.
func draftKey(session, articleID string) string {
	if articleID == "" {
		articleID = NewDraft
	}
	return session + "/" + articleID
}

// Upload validates f, sends it to the media host and records the result as
// pending for the draft of articleID (empty or NewDraft for an unsaved
// article) in session. When replaces is pending in the same draft it is
// deleted at once; saved media is never touched here.
func (s *Service) Upload(ctx context.Context, session, articleID string, f media.File, replaces string) (media.Upload, error) {
	if session == "" {
		return media.Upload{}, invalid("session", "is required")
	}
	if err := media.Validate(f); err != nil {
		return media.Upload{}, err
	}

	up, err := s.media.Upload(ctx, f)
	if err != nil {
		return media.Upload{}, fmt.Errorf("upload media: %w", err)
	}

	key := draftKey(session, articleID)
	if err := s.drafts.Add(ctx, key, up.URL); err != nil {
		// An untracked upload would never be reconciled.
		if _, derr := s.media.Delete(context.WithoutCancel(ctx), up.URL); derr != nil {
			s.logger.Warn("delete untracked upload", "url", up.URL, "error", derr)
		}
		return media.Upload{}, fmt.Errorf("track upload: %w", err)
	}

	if replaces != "" && replaces != up.URL {
		if _, err := s.discardPending(ctx, key, replaces); err != nil {
			s.logger.Warn("discard replaced upload", "draft", key, "url", replaces, "error", err)
		}
	}
	return up, nil
}

// DiscardPending deletes url if it is a pending upload of the draft of
// articleID in session and reports whether the host deleted it. Media that
// is not pending is left alone; an upload the host failed to delete stays
// pending.
func (s *Service) DiscardPending(ctx context.Context, session, articleID, url string) (bool, error) {
	return s.discardPending(ctx, draftKey(session, articleID), url)
}

func (s *Service) discardPending(ctx context.Context, key, url string) (bool, error) {
	pending, err := s.drafts.Remove(ctx, key, url)
	if err != nil {
		return false, fmt.Errorf("untrack upload: %w", err)
	}
	if !pending {
		return false, nil
	}
	ctx = context.WithoutCancel(ctx)
	ok, err := s.media.Delete(ctx, url)
	if err != nil {
		s.logger.Warn("delete pending upload", "draft", key, "url", url, "error", err)
		if err := s.drafts.Add(ctx, key, url); err != nil {
			return false, fmt.Errorf("keep failed upload pending: %w", err)
		}
		return false, nil
	}
	return ok, nil
}

// DiscardDraft deletes every pending upload of the draft of articleID in
// session and returns how many the host deleted. Uploads the host failed to
// delete stay pending for the next sweep.
func (s *Service) DiscardDraft(ctx context.Context, session, articleID string) (int, error) {
	return s.discardDraft(ctx, draftKey(session, articleID))
}

func (s *Service) discardDraft(ctx context.Context, key string) (int, error) {
	pending, err := s.drafts.Pending(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("list pending uploads: %w", err)
	}
	ctx = context.WithoutCancel(ctx)
	report := s.deleteAll(ctx, pending)
	s.logReport("draft discarded", key, report)

	if err := s.drafts.Clear(ctx, key); err != nil {
		return report.Deleted, fmt.Errorf("clear draft: %w", err)
	}
	for _, u := range report.Failed {
		if err := s.drafts.Add(ctx, key, u); err != nil {
			return report.Deleted, fmt.Errorf("keep failed upload pending: %w", err)
		}
	}
	return report.Deleted, nil
}

// SweepReport tallies one SweepDrafts run.
type SweepReport struct {
	Sessions int `json:"sessions"`
	Deleted  int `json:"deleted"`
}

// SweepDrafts discards the drafts idle for longer than maxAge.
func (s *Service) SweepDrafts(ctx context.Context, maxAge time.Duration) (SweepReport, error) {
	stale, err := s.drafts.Stale(ctx, s.now().Add(-maxAge))
	if err != nil {
		return SweepReport{}, fmt.Errorf("list stale drafts: %w", err)
	}
	var report SweepReport
	for _, key := range stale {
		n, err := s.discardDraft(ctx, key)
		report.Deleted += n
		if err != nil {
			return report, err
		}
		report.Sessions++
	}
	return report, nil
}

// settleDraft hands the pending uploads of the draft of a in session over to
// the saved article and returns those it does not reference. Only that draft
// is cleared. A new article settles the NewDraft draft.
func (s *Service) settleDraft(ctx context.Context, session, articleID string, a Article) []string {
	if session == "" {
		return nil
	}
	key := draftKey(session, articleID)
	pending, err := s.drafts.Pending(ctx, key)
	if err != nil {
		s.logger.Warn("list pending uploads", "draft", key, "error", err)
		return nil
	}
	orphans := unreferenced(pending, s.MediaReferences(a))
	if err := s.drafts.Clear(ctx, key); err != nil {
		s.logger.Warn("clear draft", "draft", key, "error", err)
	}
	return orphans
}

package article

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aldomucciarone59-web/mute-magazine/media"
)

// CleanupReport tallies a batch of media deletions.
type CleanupReport struct {
	ArticleID string
	Attempted int
	Deleted   int
	Skipped   int      // not hosted media, no call made
	Failed    []string // URLs the host failed to delete
	Err       error    // the joined failures
}

// deleteAll deletes urls through the gateway, at most s.concurrency at a
// time, once per hosted reference. Every deletion runs to completion
// regardless of the others.
func (s *Service) deleteAll(ctx context.Context, urls []string) CleanupReport {
	seen := make(map[string]bool, len(urls))
	var unique []string
	for _, u := range urls {
		key := u
		if ref, ok := media.ParseRef(u); ok {
			key = ref.String()
		}
		if u == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, u)
	}

	var (
		mu     sync.Mutex
		report = CleanupReport{Attempted: len(unique)}
		errs   []error
	)
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, u := range unique {
		g.Go(func() error {
			ok, err := s.media.Delete(ctx, u)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed = append(report.Failed, u)
				errs = append(errs, fmt.Errorf("delete %s: %w", u, err))
			case ok:
				report.Deleted++
			default:
				report.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Failed)
	report.Err = errors.Join(errs...)
	return report
}

// cleanup deletes urls in a background task that outlives the request. The
// returned channel receives exactly one report and is then closed.
func (s *Service) cleanup(ctx context.Context, articleID string, urls []string) <-chan CleanupReport {
	ch := make(chan CleanupReport, 1)
	if len(urls) == 0 {
		ch <- CleanupReport{ArticleID: articleID}
		close(ch)
		return ch
	}

	ctx = context.WithoutCancel(ctx)
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		report := s.deleteAll(ctx, urls)
		report.ArticleID = articleID
		s.logReport("unreferenced media deleted", articleID, report)
		ch <- report
		close(ch)
	}()
	return ch
}

func (s *Service) logReport(msg, articleID string, r CleanupReport) {
	if r.Attempted == 0 {
		return
	}
	if r.Err != nil {
		s.logger.Warn(msg, "id", articleID, "attempted", r.Attempted, "deleted", r.Deleted,
			"failed", len(r.Failed), "error", r.Err)
		return
	}
	s.logger.Info(msg, "id", articleID, "attempted", r.Attempted, "deleted", r.Deleted, "skipped", r.Skipped)
}

// Wait blocks until every background cleanup task has finished.
func (s *Service) Wait() {
	s.tasks.Wait()
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/isdelr/ender-feed-be/internal/database"
	"github.com/isdelr/ender-feed-be/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// GraphServiceProvider defines the interface for the social graph.
type GraphServiceProvider interface {
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	GetFollowees(ctx context.Context, userID string) ([]string, error)
	GetFollowers(ctx context.Context, userID string) ([]string, error)
	FollowingCount(ctx context.Context, userID string) (int, error)
	FollowersCount(ctx context.Context, userID string) (int, error)
	Reconcile(ctx context.Context) (ReconcileReport, error)
}

// GraphOptions tunes how the second side of a follow edge is written.
type GraphOptions struct {
	WriteRetries  int
	RetryInterval time.Duration
}

// ReconcileReport summarises a reconciliation pass.
type ReconcileReport struct {
	MissingFollowers int `json:"missingFollowers"` // following rows whose reverse edge was restored
	OrphanFollowers  int `json:"orphanFollowers"`  // followers rows without a following row, removed
}

// Repaired is the total number of edges fixed.
func (r ReconcileReport) Repaired() int { return r.MissingFollowers + r.OrphanFollowers }

// GraphService stores follow edges as two independent collections, following
// and followers. The following side is written first and is the source of truth.
type GraphService struct {
	db     *database.DB
	users  UserServiceProvider
	events EventServiceProvider
	opts   GraphOptions
	now    func() time.Time
}

// NewGraphService creates a new GraphService. events may be nil.
func NewGraphService(db *database.DB, users UserServiceProvider, events EventServiceProvider, opts GraphOptions) *GraphService {
	return &GraphService{
		db:     db,
		users:  users,
		events: events,
		opts:   opts,
		now:    time.Now,
	}
}

// Follow makes followerID follow followeeID. Following an account twice is a no-op.
func (s *GraphService) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return fmt.Errorf("user %s cannot follow themselves: %w", followerID, ErrInvalidOperation)
	}
	if err := s.ensureUsers(ctx, followerID, followeeID); err != nil {
		return err
	}

	already, err := s.exists(ctx, "SELECT 1 FROM following WHERE user_id = ? AND followee_id = ?", followerID, followeeID)
	if err != nil {
		return err
	}

	createdAt := database.ToUnix(s.now())
	if !already {
		_, err := s.db.ExecContext(ctx,
			s.db.Rebind("INSERT INTO following (user_id, followee_id, created_at) VALUES (?, ?, ?) ON CONFLICT (user_id, followee_id) DO NOTHING"),
			followerID, followeeID, createdAt)
		if err != nil {
			return fmt.Errorf("write following edge: %w", err)
		}
	}

	// Re-asserting the reverse edge on the no-op path lets a retried follow
	// finish a previous partial write.
	err = s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			s.db.Rebind("INSERT INTO followers (user_id, follower_id, created_at) VALUES (?, ?, ?) ON CONFLICT (user_id, follower_id) DO NOTHING"),
			followeeID, followerID, createdAt)
		return err
	})
	if err != nil {
		return s.partial(ctx, "follow", followerID, followeeID, err)
	}

	if !already {
		recordEvent(ctx, s.events, "graph.follow", "info", fmt.Sprintf("User %s followed %s.", followerID, followeeID), followerID)
	}
	return nil
}

// Unfollow removes the edge from both sides. Unfollowing an account that is
// not followed is a no-op.
func (s *GraphService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if err := s.ensureUsers(ctx, followerID, followeeID); err != nil {
		return err
	}

	following, err := s.exists(ctx, "SELECT 1 FROM following WHERE user_id = ? AND followee_id = ?", followerID, followeeID)
	if err != nil {
		return err
	}
	reverse, err := s.exists(ctx, "SELECT 1 FROM followers WHERE user_id = ? AND follower_id = ?", followeeID, followerID)
	if err != nil {
		return err
	}
	if !following && !reverse {
		return nil
	}

	if following {
		_, err := s.db.ExecContext(ctx,
			s.db.Rebind("DELETE FROM following WHERE user_id = ? AND followee_id = ?"), followerID, followeeID)
		if err != nil {
			return fmt.Errorf("remove following edge: %w", err)
		}
	}

	err = s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			s.db.Rebind("DELETE FROM followers WHERE user_id = ? AND follower_id = ?"), followeeID, followerID)
		return err
	})
	if err != nil {
		return s.partial(ctx, "unfollow", followerID, followeeID, err)
	}

	if following {
		recordEvent(ctx, s.events, "graph.unfollow", "info", fmt.Sprintf("User %s unfollowed %s.", followerID, followeeID), followerID)
	}
	return nil
}

// GetFollowees returns the IDs userID follows, oldest edge first.
func (s *GraphService) GetFollowees(ctx context.Context, userID string) ([]string, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.ids(ctx, "SELECT followee_id FROM following WHERE user_id = ? ORDER BY created_at, followee_id", userID)
}

// GetFollowers returns the IDs following userID, oldest edge first.
func (s *GraphService) GetFollowers(ctx context.Context, userID string) ([]string, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.ids(ctx, "SELECT follower_id FROM followers WHERE user_id = ? ORDER BY created_at, follower_id", userID)
}

// FollowingCount is the cardinality of the user's following set.
func (s *GraphService) FollowingCount(ctx context.Context, userID string) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM following WHERE user_id = ?", userID)
}

// FollowersCount is the cardinality of the user's followers set.
func (s *GraphService) FollowersCount(ctx context.Context, userID string) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM followers WHERE user_id = ?", userID)
}

type edge struct{ userID, otherID string }

// Reconcile restores symmetry between the two edge collections.
func (s *GraphService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	missing, err := s.edges(ctx, `SELECT f.user_id, f.followee_id FROM following f
		LEFT JOIN followers r ON r.user_id = f.followee_id AND r.follower_id = f.user_id
		WHERE r.user_id IS NULL`)
	if err != nil {
		return report, fmt.Errorf("find missing follower edges: %w", err)
	}
	for _, e := range missing {
		_, err := s.db.ExecContext(ctx,
			s.db.Rebind("INSERT INTO followers (user_id, follower_id, created_at) VALUES (?, ?, ?) ON CONFLICT (user_id, follower_id) DO NOTHING"),
			e.otherID, e.userID, database.ToUnix(s.now()))
		if err != nil {
			return report, fmt.Errorf("restore follower edge %s -> %s: %w", e.userID, e.otherID, err)
		}
		report.MissingFollowers++
	}

	orphans, err := s.edges(ctx, `SELECT r.user_id, r.follower_id FROM followers r
		LEFT JOIN following f ON f.user_id = r.follower_id AND f.followee_id = r.user_id
		WHERE f.user_id IS NULL`)
	if err != nil {
		return report, fmt.Errorf("find orphan follower edges: %w", err)
	}
	for _, e := range orphans {
		_, err := s.db.ExecContext(ctx,
			s.db.Rebind("DELETE FROM followers WHERE user_id = ? AND follower_id = ?"), e.userID, e.otherID)
		if err != nil {
			return report, fmt.Errorf("remove orphan follower edge %s <- %s: %w", e.userID, e.otherID, err)
		}
		report.OrphanFollowers++
	}

	if n := report.Repaired(); n > 0 {
		metrics.GraphEdgesRepaired.Add(float64(n))
		log.Warn().Int("missing_followers", report.MissingFollowers).Int("orphan_followers", report.OrphanFollowers).Msg("Repaired asymmetric follow edges")
		recordEvent(ctx, s.events, "graph.reconcile", "warn", fmt.Sprintf("Repaired %d asymmetric follow edges.", n), "")
	}
	return report, nil
}

// ensureUsers looks up every user concurrently; the first failure wins.
func (s *GraphService) ensureUsers(ctx context.Context, ids ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			_, err := s.users.GetUserByID(gctx, id)
			return err
		})
	}
	return g.Wait()
}

func (s *GraphService) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInterval
	b.Reset()
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.WriteRetries)), ctx))
}

func (s *GraphService) partial(ctx context.Context, op, followerID, followeeID string, err error) error {
	metrics.GraphPartialUpdates.WithLabelValues(op).Inc()
	log.Error().Err(err).Str("op", op).Str("follower_id", followerID).Str("followee_id", followeeID).Msg("Follow edge left asymmetric")
	recordEvent(ctx, s.events, "graph.partial_update", "error",
		fmt.Sprintf("%s %s -> %s applied to one side only.", op, followerID, followeeID), followerID)
	return &PartialGraphUpdateError{Op: op, FollowerID: followerID, FolloweeID: followeeID, Err: err}
}

func (s *GraphService) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(query), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *GraphService) count(ctx context.Context, query, userID string) (int, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, s.db.Rebind(query), userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *GraphService) ids(ctx context.Context, query, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *GraphService) edges(ctx context.Context, query string) ([]edge, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.userID, &e.otherID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

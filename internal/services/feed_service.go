package services

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/isdelr/ender-feed-be/internal/metrics"
	"github.com/isdelr/ender-feed-be/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// FeedAssembler builds a user's chronological feed.
type FeedAssembler interface {
	GetUserFeed(ctx context.Context, userID string) (iter.Seq2[models.EnrichedPost, error], error)
}

// FeedService assembles feeds from the graph, the content store and the
// engagement aggregator.
type FeedService struct {
	users      UserServiceProvider
	graph      GraphServiceProvider
	content    ContentStore
	engagement EngagementAggregator
	fanOut     int
	tracer     trace.Tracer
}

// NewFeedService creates a new FeedService. fanOut bounds how many posts are
// enriched at once; zero or less means unbounded.
func NewFeedService(users UserServiceProvider, graph GraphServiceProvider, content ContentStore, engagement EngagementAggregator, fanOut int) *FeedService {
	return &FeedService{
		users:      users,
		graph:      graph,
		content:    content,
		engagement: engagement,
		fanOut:     fanOut,
		tracer:     otel.Tracer("github.com/isdelr/ender-feed-be/internal/services"),
	}
}

// GetUserFeed returns the posts of every account userID follows, newest first,
// each joined with its likes and comments. Unknown users resolve the user
// lookup to ErrNotFound before any sequence is returned. The sequence enriches
// posts concurrently but always yields them in recency order; a failed join
// is yielded once as the final element. Cancelling ctx or breaking out of the
// loop stops every in-flight join.
func (s *FeedService) GetUserFeed(ctx context.Context, userID string) (iter.Seq2[models.EnrichedPost, error], error) {
	started := time.Now()
	parent := ctx
	ctx, span := s.tracer.Start(ctx, "FeedService.GetUserFeed", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, planFailed(span, started, err)
	}
	followees, err := s.graph.GetFollowees(ctx, userID)
	if err != nil {
		return nil, planFailed(span, started, fmt.Errorf("followees of %s: %w", userID, err))
	}
	if len(followees) == 0 {
		finished("empty", started)
		return emptyFeed, nil
	}

	posts, err := s.content.GetPostsByAuthors(ctx, followees)
	if err != nil {
		return nil, planFailed(span, started, fmt.Errorf("posts by followees of %s: %w", userID, err))
	}
	span.SetAttributes(attribute.Int("feed.followees", len(followees)), attribute.Int("feed.posts", len(posts)))
	if len(posts) == 0 {
		finished("empty", started)
		return emptyFeed, nil
	}

	return s.stream(parent, trace.LinkFromContext(ctx), posts, started), nil
}

func emptyFeed(func(models.EnrichedPost, error) bool) {}

func planFailed(span trace.Span, started time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	finished("error", started)
	return err
}

func finished(outcome string, started time.Time) {
	metrics.FeedBuilds.WithLabelValues(outcome).Inc()
	metrics.FeedBuildDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
}

// slot holds one post's enrichment result. Fields are written before done is
// closed and never after.
type slot struct {
	done chan struct{}
	post models.EnrichedPost
	err  error
}

// stream runs under its own span, parented to the caller and linked to the
// planning span, since the sequence is consumed after GetUserFeed returns.
func (s *FeedService) stream(parent context.Context, plan trace.Link, posts []models.Post, started time.Time) iter.Seq2[models.EnrichedPost, error] {
	return func(yield func(models.EnrichedPost, error) bool) {
		streamCtx, span := s.tracer.Start(parent, "FeedService.stream",
			trace.WithLinks(plan), trace.WithAttributes(attribute.Int("feed.posts", len(posts))))
		defer span.End()

		ctx, cancel := context.WithCancel(streamCtx)
		g, gctx := errgroup.WithContext(ctx)
		if s.fanOut > 0 {
			g.SetLimit(s.fanOut)
		}

		slots := make([]*slot, len(posts))
		for i := range slots {
			slots[i] = &slot{done: make(chan struct{})}
		}

		// Joins are started in recency order so the head of the feed is
		// ready first. g.Go blocks here, never in the consumer, once the
		// fan-out limit is reached.
		launched := make(chan struct{})
		go func() {
			defer close(launched)
			for i, post := range posts {
				if gctx.Err() != nil {
					return
				}
				sl := slots[i]
				g.Go(func() error {
					defer close(sl.done)
					if err := gctx.Err(); err != nil {
						sl.err = err
						return nil
					}
					enriched, err := s.enrich(gctx, post)
					if err != nil {
						sl.err = err
						return err
					}
					if err := gctx.Err(); err != nil {
						sl.err = err
						return nil
					}
					sl.post = enriched
					return nil
				})
			}
		}()

		var (
			once    sync.Once
			joinErr error
		)
		stop := func() error {
			once.Do(func() {
				cancel()
				<-launched
				joinErr = g.Wait()
			})
			return joinErr
		}
		defer stop()

		for _, sl := range slots {
			select {
			case <-sl.done:
				if sl.err == nil {
					metrics.FeedPostsEmitted.Inc()
					if !yield(sl.post, nil) {
						stop()
						finished("cancelled", started)
						return
					}
					continue
				}
			case <-gctx.Done():
			}

			// A join failed or the caller's context ended. The first
			// failure recorded by the group is the one worth reporting.
			err := stop()
			if err == nil {
				err = parent.Err()
			}
			if err == nil {
				err = sl.err
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if parent.Err() != nil {
				finished("cancelled", started)
			} else {
				finished("error", started)
			}
			yield(models.EnrichedPost{}, err)
			return
		}

		finished("ok", started)
	}
}

// enrich fetches likes and comments in parallel, then resolves every
// engaging user plus the author in a single batch.
func (s *FeedService) enrich(ctx context.Context, post models.Post) (models.EnrichedPost, error) {
	ctx, span := s.tracer.Start(ctx, "FeedService.enrich", trace.WithAttributes(attribute.String("post.id", post.ID)))
	defer span.End()

	var (
		likes    []models.Like
		comments []models.Comment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if likes, err = s.content.GetLikesByPost(gctx, post.ID); err != nil {
			return fmt.Errorf("likes of post %s: %w", post.ID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if comments, err = s.content.GetCommentsByPost(gctx, post.ID); err != nil {
			return fmt.Errorf("comments of post %s: %w", post.ID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.EnrichedPost{}, err
	}

	names, err := s.engagement.ResolveNames(ctx, CollectUserIDs(post.AuthorID, likes, comments))
	if err != nil {
		err = fmt.Errorf("post %s: %w", post.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.EnrichedPost{}, err
	}
	span.SetAttributes(attribute.Int("post.likes", len(likes)), attribute.Int("post.comments", len(comments)))
	return Enrich(post, likes, comments, names), nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/isdelr/ender-feed-be/internal/metrics"
	"github.com/isdelr/ender-feed-be/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
)

// hookedStore runs optional hooks before delegating to the real store.
type hookedStore struct {
	ContentStore
	onLikes    func(ctx context.Context, postID string) error
	onComments func(ctx context.Context, postID string) error
}

func (s *hookedStore) GetLikesByPost(ctx context.Context, postID string) ([]models.Like, error) {
	if s.onLikes != nil {
		if err := s.onLikes(ctx, postID); err != nil {
			return nil, err
		}
	}
	return s.ContentStore.GetLikesByPost(ctx, postID)
}

func (s *hookedStore) GetCommentsByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	if s.onComments != nil {
		if err := s.onComments(ctx, postID); err != nil {
			return nil, err
		}
	}
	return s.ContentStore.GetCommentsByPost(ctx, postID)
}

func (f *fixture) feed(store ContentStore, resolver NameResolver, fanOut int) *FeedService {
	if store == nil {
		store = f.content
	}
	if resolver == nil {
		resolver = f.users
	}
	return NewFeedService(f.users, f.graph, store, NewEngagementService(resolver), fanOut)
}

func collect(seq iter.Seq2[models.EnrichedPost, error]) ([]models.EnrichedPost, error) {
	var out []models.EnrichedPost
	for post, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, post)
	}
	return out, nil
}

func TestFeedScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol, dave := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol"), f.user(t, "dave")

	f.follow(t, alice, bob)
	f.follow(t, alice, carol)
	p1 := f.post(t, bob, "bob's post")
	p2 := f.post(t, carol, "carol's post")
	f.post(t, dave, "not followed")
	f.post(t, alice, "own post")

	_, err := f.content.AddLike(ctx, p1.ID, dave.ID)
	require.NoError(t, err)
	_, err = f.content.AddComment(ctx, p2.ID, dave.ID, "nice")
	require.NoError(t, err)

	seq, err := f.feed(nil, nil, 4).GetUserFeed(ctx, alice.ID)
	require.NoError(t, err)
	posts, err := collect(seq)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, p2.ID, posts[0].PostID)
	assert.Equal(t, "carol", posts[0].AuthorUsername)
	assert.Empty(t, posts[0].Likes)
	require.Len(t, posts[0].Comments, 1)
	assert.Equal(t, "dave", posts[0].Comments[0].Username)
	assert.Equal(t, "nice", posts[0].Comments[0].Text)
	assert.Equal(t, 1, posts[0].CommentCount)

	assert.Equal(t, p1.ID, posts[1].PostID)
	assert.Equal(t, "bob", posts[1].AuthorUsername)
	require.Len(t, posts[1].Likes, 1)
	assert.Equal(t, "dave", posts[1].Likes[0].Username)
	assert.Equal(t, 1, posts[1].LikeCount)
	assert.Empty(t, posts[1].Comments)
}

func TestFeedEmptyWhenFollowingNobody(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	f.post(t, bob, "unseen")

	seq, err := f.feed(nil, nil, 4).GetUserFeed(context.Background(), alice.ID)
	require.NoError(t, err)
	posts, err := collect(seq)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestFeedUnknownUser(t *testing.T) {
	f := newFixture(t)
	seq, err := f.feed(nil, nil, 4).GetUserFeed(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, seq)
}

func TestFeedUnknownLikerRendersUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	f.follow(t, alice, bob)
	post := f.post(t, bob, "hello")

	// An account that no longer exists.
	_, err := f.db.ExecContext(ctx, "INSERT INTO likes (id, post_id, user_id, liked_at) VALUES ('l-ghost', ?, 'ghost', 1)", post.ID)
	require.NoError(t, err)

	seq, err := f.feed(nil, nil, 4).GetUserFeed(ctx, alice.ID)
	require.NoError(t, err)
	posts, err := collect(seq)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Len(t, posts[0].Likes, 1)
	assert.Equal(t, "ghost", posts[0].Likes[0].UserID)
	assert.Equal(t, UnknownUser, posts[0].Likes[0].Username)
	assert.Equal(t, "bob", posts[0].AuthorUsername)
}

func TestFeedOrderIsNonIncreasingWithDeterministicTies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	f.follow(t, alice, bob)
	f.follow(t, alice, carol)

	for i := range 6 {
		f.post(t, bob, fmt.Sprintf("bob %d", i))
		f.post(t, carol, fmt.Sprintf("carol %d", i))
	}
	fixed := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
	f.content.now = func() time.Time { return fixed }
	f.post(t, bob, "tie 1")
	f.post(t, carol, "tie 2")

	// A small fan-out forces joins to finish out of order.
	store := &hookedStore{ContentStore: f.content, onLikes: func(ctx context.Context, postID string) error {
		if postID[0]%2 == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		return nil
	}}

	var first []string
	for run := range 2 {
		seq, err := f.feed(store, nil, 3).GetUserFeed(ctx, alice.ID)
		require.NoError(t, err)
		posts, err := collect(seq)
		require.NoError(t, err)
		require.Len(t, posts, 14)

		ids := make([]string, len(posts))
		for i, p := range posts {
			ids[i] = p.PostID
			if i == 0 {
				continue
			}
			prev := posts[i-1]
			require.False(t, p.CreatedAt.After(prev.CreatedAt), "post %d is newer than its predecessor", i)
			if p.CreatedAt.Equal(prev.CreatedAt) {
				assert.Less(t, p.PostID, prev.PostID)
			}
		}
		if run == 0 {
			first = ids
		} else {
			assert.Equal(t, first, ids)
		}
	}
}

func TestFeedResolvesNamesOncePerPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	f.follow(t, alice, bob)
	for i := range 3 {
		p := f.post(t, bob, fmt.Sprintf("post %d", i))
		_, err := f.content.AddLike(ctx, p.ID, carol.ID)
		require.NoError(t, err)
		_, err = f.content.AddComment(ctx, p.ID, carol.ID, "hey")
		require.NoError(t, err)
	}

	resolver := &countingResolver{names: map[string]string{bob.ID: "bob", carol.ID: "carol"}}
	seq, err := f.feed(nil, resolver, 0).GetUserFeed(ctx, alice.ID)
	require.NoError(t, err)
	posts, err := collect(seq)
	require.NoError(t, err)
	require.Len(t, posts, 3)

	assert.Equal(t, 3, resolver.calls())
	for _, batch := range resolver.batches {
		assert.ElementsMatch(t, []string{bob.ID, carol.ID}, batch)
	}
}

func TestFeedFanOutIsBounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	f.follow(t, alice, bob)
	for i := range 10 {
		f.post(t, bob, fmt.Sprintf("post %d", i))
	}

	var inFlight, peak atomic.Int32
	store := &hookedStore{ContentStore: f.content, onLikes: func(context.Context, string) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return nil
	}}

	seq, err := f.feed(store, nil, 2).GetUserFeed(ctx, alice.ID)
	require.NoError(t, err)
	posts, err := collect(seq)
	require.NoError(t, err)
	assert.Len(t, posts, 10)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Positive(t, peak.Load())
}

func TestFeedJoinFailureEndsStream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	f.follow(t, alice, bob)
	older := f.post(t, bob, "older")
	f.post(t, bob, "newer")

	boom := errors.New("comments unavailable")
	store := &hookedStore{ContentStore: f.content, onComments: func(_ context.Context, postID string) error {
		if postID == older.ID {
			return boom
		}
		return nil
	}}

	seq, err := f.feed(store, nil, 4).GetUserFeed(ctx, alice.ID)
	require.NoError(t, err)

	var (
		got  []models.EnrichedPost
		errs []error
	)
	for post, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got = append(got, post)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
	// Whatever was emitted precedes the failing post.
	for _, p := range got {
		assert.NotEqual(t, older.ID, p.PostID)
	}
}

func TestFeedEarlyBreakStopsJoins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	f.follow(t, alice, bob)
	var newest models.Post
	for i := range 8 {
		newest = f.post(t, bob, fmt.Sprintf("post %d", i))
	}

	// Only the head of the feed can complete; every other join waits for cancellation.
	var started atomic.Int32
	store := &hookedStore{ContentStore: f.content, onLikes: func(ctx context.Context, postID string) error {
		started.Add(1)
		if postID == newest.ID {
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	}}
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	seq, err := f.feed(store, nil, 3).GetUserFeed(ctx, alice.ID)
	require.NoError(t, err)

	var count int
	for _, err := range seq {
		require.NoError(t, err)
		count++
		break
	}
	assert.Equal(t, 1, count)
	assert.Less(t, started.Load(), int32(8))
}

func TestFeedCancellation(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	f.follow(t, alice, bob)
	for i := range 4 {
		f.post(t, bob, fmt.Sprintf("post %d", i))
	}

	var once sync.Once
	blocked := make(chan struct{})
	store := &hookedStore{ContentStore: f.content, onLikes: func(ctx context.Context, _ string) error {
		once.Do(func() { close(blocked) })
		<-ctx.Done()
		return ctx.Err()
	}}
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	seq, err := f.feed(store, nil, 2).GetUserFeed(ctx, alice.ID)
	require.NoError(t, err)

	go func() {
		<-blocked
		cancel()
	}()

	posts, err := collect(seq)
	assert.Empty(t, posts)
	assert.ErrorIs(t, err, context.Canceled)
}

func durationSamples(t *testing.T, outcome string) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.FeedBuildDuration.WithLabelValues(outcome).(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestFeedDurationRecordedForEveryOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	feed := f.feed(nil, nil, 2)

	errorsBefore, emptyBefore, okBefore := durationSamples(t, "error"), durationSamples(t, "empty"), durationSamples(t, "ok")

	_, err := feed.GetUserFeed(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, errorsBefore+1, durationSamples(t, "error"))

	seq, err := feed.GetUserFeed(ctx, alice.ID)
	require.NoError(t, err)
	_, err = collect(seq)
	require.NoError(t, err)
	assert.Equal(t, emptyBefore+1, durationSamples(t, "empty"))

	f.follow(t, alice, bob)
	f.post(t, bob, "hello")
	seq, err = feed.GetUserFeed(ctx, alice.ID)
	require.NoError(t, err)
	_, err = collect(seq)
	require.NoError(t, err)
	assert.Equal(t, okBefore+1, durationSamples(t, "ok"))
}

func TestFeedStreamSpanParentsJoins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	f.follow(t, alice, bob)
	f.post(t, bob, "one")
	f.post(t, bob, "two")

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(ctx)

	feed := f.feed(nil, nil, 2)
	feed.tracer = tp.Tracer("feed-test")

	seq, err := feed.GetUserFeed(ctx, alice.ID)
	require.NoError(t, err)
	posts, err := collect(seq)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	byName := map[string][]sdktrace.ReadOnlySpan{}
	for _, span := range recorder.Ended() {
		byName[span.Name()] = append(byName[span.Name()], span)
	}
	require.Len(t, byName["FeedService.GetUserFeed"], 1)
	require.Len(t, byName["FeedService.stream"], 1)
	require.Len(t, byName["FeedService.enrich"], 2)

	plan, stream := byName["FeedService.GetUserFeed"][0], byName["FeedService.stream"][0]
	require.Len(t, stream.Links(), 1)
	assert.Equal(t, plan.SpanContext().SpanID(), stream.Links()[0].SpanContext.SpanID())
	for _, enrich := range byName["FeedService.enrich"] {
		assert.Equal(t, stream.SpanContext().SpanID(), enrich.Parent().SpanID())
		assert.False(t, enrich.EndTime().After(stream.EndTime()))
	}
}

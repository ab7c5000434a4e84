// Package feed implements the ephemeral transmission feed: publish with a
// fixed time-to-live, subscribe to a live stream of the currently visible
// messages.
//
// Expiry is a display-time filter, not a deletion: the store keeps records
// past their expiry and each subscription re-derives "still visible" on a
// one-second local ticker, so messages disappear from view without a new
// store event.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
)

var (
	// ErrNotAuthenticated is returned when publishing without a resolved
	// author identity and display name.
	ErrNotAuthenticated = errors.New("no authenticated agent")
	// ErrEmptyBody is returned when the message body is blank.
	ErrEmptyBody = errors.New("message body is empty")
)

// DefaultTTL is how long a transmission stays visible.
const DefaultTTL = 5 * time.Minute

// refilterInterval drives countdown updates and expiry-without-traffic.
const refilterInterval = time.Second

// Author identifies the publisher of a message. Resolved once at session
// start from the profile store and threaded into each Publish call.
type Author struct {
	ID   string
	Name string
}

// MessageStore is the subset of the Redis store the feed needs.
type MessageStore interface {
	AddMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context) ([]models.Message, error)
	SubscribeFeedEvents(ctx context.Context) *redis.PubSub
}

// Service publishes transmissions and serves live subscriptions.
type Service struct {
	store  MessageStore
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates a feed service. A zero ttl falls back to DefaultTTL.
func NewService(store MessageStore, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Publish writes one message with server-assigned creation time and expiry
// creation+TTL. Every call produces one record: no rate limiting, no
// deduplication.
func (s *Service) Publish(ctx context.Context, author Author, body string) (*models.Message, error) {
	if author.ID == "" || author.Name == "" {
		return nil, ErrNotAuthenticated
	}
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}

	now := s.now()
	msg := &models.Message{
		AgentName: author.Name,
		AuthorID:  author.ID,
		Body:      body,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(s.ttl).UnixMilli(),
	}

	if err := s.store.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	return msg, nil
}

// Visible returns the currently visible messages in creation-time ascending
// order, as received from the store. No client-side re-sort.
func (s *Service) Visible(ctx context.Context) ([]VisibleMessage, error) {
	all, err := s.store.ListMessages(ctx)
	if err != nil {
		return nil, err
	}
	return filterVisible(all, s.now()), nil
}

// VisibleMessage is a message plus its remaining display time at snapshot
// time.
type VisibleMessage struct {
	models.Message
	RemainingMS int64  `json:"remaining_ms"`
	Countdown   string `json:"countdown"` // MM:SS
}

// Snapshot is one immutable view of the visible set.
type Snapshot struct {
	Messages []VisibleMessage `json:"messages"`
	At       int64            `json:"at"` // Unix ms
}

func filterVisible(all []models.Message, now time.Time) []VisibleMessage {
	nowMillis := now.UnixMilli()
	visible := make([]VisibleMessage, 0, len(all))
	for _, msg := range all {
		if !msg.Visible(nowMillis) {
			continue
		}
		remaining := msg.ExpiresAt - nowMillis
		visible = append(visible, VisibleMessage{
			Message:     msg,
			RemainingMS: remaining,
			Countdown:   formatCountdown(remaining),
		})
	}
	return visible
}

func formatCountdown(remainingMillis int64) string {
	if remainingMillis < 0 {
		remainingMillis = 0
	}
	total := remainingMillis / 1000
	return fmt.Sprintf("%02d:%02d", total/60%60, total%60)
}

// Subscription is a cancellable live view of the feed. Snapshots arrive on C
// whenever the visible set or a countdown changes; C is closed when the
// subscription ends. After C closes, Err reports why: nil for a clean cancel,
// otherwise the stream failure.
type Subscription struct {
	C      <-chan Snapshot
	cancel context.CancelFunc
	err    error
	done   chan struct{}
}

// Cancel tears the subscription down, stopping its ticker and store listener.
// Safe to call more than once.
func (sub *Subscription) Cancel() {
	sub.cancel()
}

// Err reports the terminal error after C has closed.
func (sub *Subscription) Err() error {
	select {
	case <-sub.done:
		return sub.err
	default:
		return nil
	}
}

// Subscribe opens a live subscription. Establishment failures are returned
// immediately so the caller can surface an error state instead of rendering
// stale or empty data.
func (s *Service) Subscribe(ctx context.Context) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	pubsub := s.store.SubscribeFeedEvents(subCtx)
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("establish feed subscription: %w", err)
	}

	out := make(chan Snapshot, 1)
	sub := &Subscription{
		C:      out,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.run(subCtx, pubsub, out, sub)

	return sub, nil
}

// run drives one subscription: refilter on store events and on the ticker,
// emit when the view changed. Single goroutine per subscription; all its
// resources stop with ctx.
func (s *Service) run(ctx context.Context, pubsub *redis.PubSub, out chan<- Snapshot, sub *Subscription) {
	defer func() {
		_ = pubsub.Close()
		close(out)
		close(sub.done)
	}()

	ticker := time.NewTicker(refilterInterval)
	defer ticker.Stop()

	events := pubsub.Channel()

	var last Snapshot
	first := true
	emit := func() bool {
		visible, err := s.Visible(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("feed refilter failed")
				sub.err = err
			}
			return false
		}
		snap := Snapshot{Messages: visible, At: s.now().UnixMilli()}
		if !first && !changed(last, snap) {
			return true
		}
		first = false
		last = snap
		select {
		case out <- snap:
		case <-ctx.Done():
			return false
		}
		return true
	}

	if !emit() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					sub.err = errors.New("feed event stream closed")
				}
				return
			}
			if !emit() {
				return
			}
		case <-ticker.C:
			if !emit() {
				return
			}
		}
	}
}

// changed reports whether two snapshots differ in membership or countdown.
func changed(prev, next Snapshot) bool {
	if len(prev.Messages) != len(next.Messages) {
		return true
	}
	for i := range next.Messages {
		if prev.Messages[i].ID != next.Messages[i].ID {
			return true
		}
		if prev.Messages[i].Countdown != next.Messages[i].Countdown {
			return true
		}
	}
	return false
}

package personalize

import (
	"context"
	"fmt"
	"time"

	"github.com/pders01/headlines/internal/cache"
	"github.com/pders01/headlines/internal/debuglog"
	"github.com/pders01/headlines/internal/news"
)

// DefaultPreferencesTTL is how long a user's preferences stay cached.
const DefaultPreferencesTTL = 10 * time.Minute

// PreferenceSource reads stored user preferences.
type PreferenceSource interface {
	GetPreferences(userID string) (news.UserPreferences, error)
}

type Aggregator interface {
	Aggregate(ctx context.Context, q news.NewsQuery) (*news.AggregatedResult, error)
}

// Service serves personalized headlines. Preferences are read through the
// cache store; writers call Invalidate after changing them.
type Service struct {
	prefs PreferenceSource
	agg   Aggregator
	cache *cache.Store
	ttl   time.Duration
}

func NewService(prefs PreferenceSource, agg Aggregator, store *cache.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultPreferencesTTL
	}
	return &Service{prefs: prefs, agg: agg, cache: store, ttl: ttl}
}

func cacheParams(userID string) map[string]string {
	return map[string]string{"userId": userID}
}

// Preferences returns the user's preferences, from cache when possible.
func (s *Service) Preferences(userID string) (news.UserPreferences, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(cache.KeyUserPreferences, cacheParams(userID)); ok {
			if prefs, ok := v.(news.UserPreferences); ok {
				return prefs, nil
			}
		}
	}

	prefs, err := s.prefs.GetPreferences(userID)
	if err != nil {
		return news.UserPreferences{}, fmt.Errorf("loading preferences: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(cache.KeyUserPreferences, cacheParams(userID), prefs, s.ttl)
	}
	return prefs, nil
}

// Invalidate drops the cached preferences of userID.
func (s *Service) Invalidate(userID string) {
	if s.cache != nil {
		s.cache.Delete(cache.KeyUserPreferences, cacheParams(userID))
	}
}

// Headlines aggregates q, personalized for userID when one is given.
func (s *Service) Headlines(ctx context.Context, userID string, q news.NewsQuery) (*news.AggregatedResult, error) {
	if userID == "" {
		return s.agg.Aggregate(ctx, q)
	}

	prefs, err := s.Preferences(userID)
	if err != nil {
		return nil, err
	}

	pq := Personalize(prefs, q)
	debuglog.WithFields(map[string]interface{}{"user": userID}).Debugf("personalized query q=%q category=%s country=%s language=%s", pq.Q, pq.Category, pq.Country, pq.Language)
	return s.agg.Aggregate(ctx, pq)
}

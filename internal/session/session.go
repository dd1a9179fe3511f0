// Package session serves repeated expansions against a table that may be
// updated in between. Results are cached until the table changes.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/fwessels/macroexp/internal/expand"
	"github.com/fwessels/macroexp/internal/macro"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Table is a definition table that can be updated. macro.Set and store.DB
// implement it.
type Table interface {
	macro.Table
	ReplaceFile(file string, defs []macro.Definition, types []string, failures []macro.Diagnostic) error
	SetActive(name string, index int) error
}

type cacheKey struct {
	text    bool
	name    string
	args    string
	hasArgs bool
}

// Session caches expansion results. Results are shared between callers and
// must not be modified.
type Session struct {
	table Table
	cfg   expand.Config
	log   logrus.FieldLogger

	// expansions hold mu for reading, updates for writing
	mu    sync.RWMutex
	cache *lru.Cache[cacheKey, *expand.Result]
}

func New(table Table, cfg expand.Config, size int) (*Session, error) {
	cache, err := lru.New[cacheKey, *expand.Result](size)
	if err != nil {
		return nil, errors.Wrap(err, "create result cache")
	}
	return &Session{
		table: table,
		cfg:   cfg,
		log:   logrus.WithField("component", "session"),
		cache: cache,
	}, nil
}

// Expand is expand.Expand with caching. It returns ctx.Err() if ctx ends
// before the expansion does.
func (s *Session) Expand(ctx context.Context, name string, args []string) (*expand.Result, error) {
	key := cacheKey{name: name, args: strings.Join(args, "\x00"), hasArgs: args != nil}
	return s.do(ctx, key, func() *expand.Result {
		return expand.Expand(name, args, s.table, s.cfg)
	})
}

// ExpandText is expand.ExpandText with caching.
func (s *Session) ExpandText(ctx context.Context, text string) (*expand.Result, error) {
	key := cacheKey{text: true, name: text}
	return s.do(ctx, key, func() *expand.Result {
		return expand.ExpandText(text, s.table, s.cfg)
	})
}

func (s *Session) do(ctx context.Context, key cacheKey, fn func() *expand.Result) (*expand.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res, ok := s.cache.Get(key); ok {
		return res, nil
	}

	done := make(chan *expand.Result, 1)
	go func() {
		s.mu.RLock()
		defer s.mu.RUnlock()
		res := fn()
		s.cache.Add(key, res)
		done <- res
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		s.log.WithField("macro", key.name).Debug("expansion abandoned")
		return nil, ctx.Err()
	}
}

// ReplaceFile updates the table and drops all cached results.
func (s *Session) ReplaceFile(file string, defs []macro.Definition, types []string, failures []macro.Diagnostic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.purge()
	return s.table.ReplaceFile(file, defs, types, failures)
}

// SetActive selects a definition and drops all cached results.
func (s *Session) SetActive(name string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.purge()
	return s.table.SetActive(name, index)
}

// SetConfig changes the expansion configuration and drops all cached
// results.
func (s *Session) SetConfig(cfg expand.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.purge()
}

func (s *Session) purge() {
	if n := s.cache.Len(); n > 0 {
		s.log.WithField("results", n).Debug("purging cache")
	}
	s.cache.Purge()
}

// Cached returns the number of cached results.
func (s *Session) Cached() int {
	return s.cache.Len()
}

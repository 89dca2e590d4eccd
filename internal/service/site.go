package service

import (
	"strings"
	"sync"

	"github.com/pagewright/internal/db"
)

// Site carries the tenant and locale one request operates on, plus a
// request-scoped cache of resolved page part records. It replaces any notion
// of a process-wide "current website".
type Site struct {
	WebsiteID uint
	Locale    string
	RequestID string

	mu    sync.Mutex
	parts map[string]*db.PagePart
}

// NewSite returns a request context for websiteID in locale.
func NewSite(websiteID uint, locale string) *Site {
	return &Site{WebsiteID: websiteID, Locale: strings.TrimSpace(locale)}
}

func partCacheKey(key, pageSlug string) string {
	return key + "\x00" + pageSlug
}

func (s *Site) cachedPart(key, pageSlug string) (*db.PagePart, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	part, ok := s.parts[partCacheKey(key, pageSlug)]
	return part, ok
}

func (s *Site) rememberPart(key, pageSlug string, part *db.PagePart) {
	if s == nil || part == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.parts == nil {
		s.parts = make(map[string]*db.PagePart)
	}
	s.parts[partCacheKey(key, pageSlug)] = part
}

// forgetParts drops cached records after a mutation.
func (s *Site) forgetParts() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.parts = nil
	s.mu.Unlock()
}

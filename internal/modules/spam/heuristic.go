package spam

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// defaultBlockedKeywords always count as spam, on top of configured ones.
var defaultBlockedKeywords = []string{
	"casino", "viagra", "cialis", "porn", "gambling", "lottery",
	"poker", "blackjack", "payday loan", "replica watches",
	"代孕", "代开", "发票", "刷单", "网赚", "信用卡套现",
	"棋牌", "彩票", "赌博", "博彩", "老虎机", "百家乐",
}

// Heuristic is the local provider: blocked IPs and keywords mark a
// submission as spam. Anything else is left to the reputation services.
type Heuristic struct {
	blockIPs   map[string]struct{}
	ipPatterns []*regexp.Regexp
	keywords   []string

	// the matcher keeps per-search state
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
}

// NewHeuristic builds the matcher once. IP entries are matched exactly and,
// when they compile, as anchored regular expressions.
func NewHeuristic(keywords, blockIPs []string) *Heuristic {
	h := &Heuristic{blockIPs: make(map[string]struct{}, len(blockIPs))}

	for _, pattern := range blockIPs {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		h.blockIPs[pattern] = struct{}{}
		if re, err := regexp.Compile("^(?:" + pattern + ")$"); err == nil {
			h.ipPatterns = append(h.ipPatterns, re)
		}
	}

	seen := make(map[string]struct{})
	for _, kw := range append(append([]string{}, keywords...), defaultBlockedKeywords...) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		h.keywords = append(h.keywords, kw)
	}
	if len(h.keywords) > 0 {
		h.matcher = ahocorasick.NewStringMatcher(h.keywords)
	}
	return h
}

func (*Heuristic) Kind() Kind { return KindHeuristic }

func (*Heuristic) Available(context.Context) (bool, error) { return true, nil }

func (h *Heuristic) Check(_ context.Context, ev Evidence) (Result, error) {
	if h.blockedIP(ev.IP) {
		return Result{Verdict: Spam}, nil
	}
	if h.matcher != nil {
		text := strings.ToLower(strings.Join([]string{ev.Author, ev.AuthorURL, ev.Content}, "\n"))
		h.mu.Lock()
		hit := h.matcher.Contains([]byte(text))
		h.mu.Unlock()
		if hit {
			return Result{Verdict: Spam}, nil
		}
	}
	return Result{Verdict: Indecisive}, nil
}

func (h *Heuristic) blockedIP(ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return false
	}
	if _, ok := h.blockIPs[ip]; ok {
		return true
	}
	for _, re := range h.ipPatterns {
		if re.MatchString(ip) {
			return true
		}
	}
	return false
}

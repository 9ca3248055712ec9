package bark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mx-space/moderation/internal/config"
	"github.com/mx-space/moderation/internal/models"
)

const (
	defaultServerURL = "https://day.app"
	excerptRunes     = 80
)

// Service sends iOS push notifications via the Bark API.
type Service struct {
	key       string
	serverURL string
	group     string
	http      *http.Client

	mu         sync.Mutex
	lastPushAt map[string]time.Time
	throttle   time.Duration
	now        func() time.Time
}

func New(cfg config.BarkConfig) *Service {
	server := strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if server == "" {
		server = defaultServerURL
	}
	return &Service{
		key:        strings.TrimSpace(cfg.Key),
		serverURL:  server,
		group:      cfg.Group,
		http:       &http.Client{Timeout: 10 * time.Second},
		lastPushAt: make(map[string]time.Time),
		throttle:   10 * time.Minute,
		now:        time.Now,
	}
}

// Enabled reports whether a device key is configured.
func (s *Service) Enabled() bool { return s != nil && s.key != "" }

type pushPayload struct {
	DeviceKey string `json:"device_key"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Group     string `json:"group,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Push sends a notification immediately.
func (s *Service) Push(ctx context.Context, title, body, link string) error {
	if !s.Enabled() {
		return nil
	}
	b, err := json.Marshal(pushPayload{
		DeviceKey: s.key,
		Title:     title,
		Body:      body,
		Group:     s.group,
		URL:       link,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/push", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("bark push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("bark push: status %d", resp.StatusCode)
	}
	return nil
}

// NotifyComment pushes a short summary of a new comment.
func (s *Service) NotifyComment(ctx context.Context, c *models.CommentModel, page *models.PageModel) error {
	if !s.Enabled() {
		return nil
	}
	title := "New " + c.ApprovalStatus() + " comment"
	link := ""
	if page != nil {
		title += " on " + page.Title
		link = page.URL
	}
	return s.Push(ctx, title, c.Author+": "+excerpt(c.Content), link)
}

// ThrottlePush reports a rate-limited client, at most once per ip and path
// every ten minutes.
func (s *Service) ThrottlePush(ctx context.Context, ip, path string) {
	if !s.Enabled() {
		return
	}
	key := ip + "|" + path

	s.mu.Lock()
	now := s.now()
	if last, ok := s.lastPushAt[key]; ok && now.Sub(last) < s.throttle {
		s.mu.Unlock()
		return
	}
	s.lastPushAt[key] = now
	s.mu.Unlock()

	_ = s.Push(ctx, "Comment flood", fmt.Sprintf("IP: %s Path: %s", ip, path), "")
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= excerptRunes {
		return s
	}
	r := []rune(s)
	return string(r[:excerptRunes]) + "…"
}

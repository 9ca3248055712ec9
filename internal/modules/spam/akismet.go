package spam

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// keyState memoizes a definitive credential check. Transport failures are
// never memoized, so a flaky network does not disable a provider for good.
type keyState struct {
	mu    sync.Mutex
	known bool
	valid bool
}

func (k *keyState) get() (valid, known bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.valid, k.known
}

func (k *keyState) set(valid bool) {
	k.mu.Lock()
	k.valid, k.known = valid, true
	k.mu.Unlock()
}

type AkismetConfig struct {
	Key     string
	BaseURL string
	// Blog is the front page URL the key is registered for.
	Blog string
}

// Akismet asks the Akismet comment-check API for a spam/ham classification.
type Akismet struct {
	cfg  AkismetConfig
	http *http.Client
	key  keyState
}

func NewAkismet(cfg AkismetConfig, client *http.Client) *Akismet {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = http.DefaultClient
	}
	return &Akismet{cfg: cfg, http: client}
}

func (*Akismet) Kind() Kind { return KindAkismet }

// Available is the "valid?" gate: a configured key that Akismet accepts.
func (a *Akismet) Available(ctx context.Context) (bool, error) {
	if a.cfg.Key == "" {
		return false, nil
	}
	if valid, known := a.key.get(); known {
		return valid, nil
	}
	valid, err := a.VerifyKey(ctx)
	if err != nil {
		return false, err
	}
	a.key.set(valid)
	return valid, nil
}

// VerifyKey calls verify-key; the API answers "valid" or "invalid".
func (a *Akismet) VerifyKey(ctx context.Context) (bool, error) {
	body, _, err := a.post(ctx, "verify-key", url.Values{
		"key":  {a.cfg.Key},
		"blog": {a.cfg.Blog},
	})
	if err != nil {
		return false, err
	}
	return body == "valid", nil
}

// Check calls comment-check. The API answers "true" for spam and "false" for
// ham; anything else comes with a debug header and is an error.
func (a *Akismet) Check(ctx context.Context, ev Evidence) (Result, error) {
	commentType := ev.CommentType
	if commentType == "" {
		commentType = "comment"
	}
	body, header, err := a.post(ctx, "comment-check", url.Values{
		"api_key":              {a.cfg.Key},
		"blog":                 {a.cfg.Blog},
		"user_ip":              {ev.IP},
		"user_agent":           {ev.UserAgent},
		"referrer":             {ev.Referrer},
		"permalink":            {ev.Permalink},
		"comment_type":         {commentType},
		"comment_author":       {ev.Author},
		"comment_author_email": {ev.AuthorEmail},
		"comment_author_url":   {ev.AuthorURL},
		"comment_content":      {ev.Content},
	})
	if err != nil {
		return Result{}, err
	}
	switch body {
	case "true":
		return Result{Verdict: Spam}, nil
	case "false":
		return Result{Verdict: Ham}, nil
	default:
		return Result{}, fmt.Errorf("akismet comment-check: unexpected answer %q (%s)", body, header.Get("X-akismet-debug-help"))
	}
}

func (a *Akismet) post(ctx context.Context, method string, form url.Values) (string, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return "", nil, fmt.Errorf("akismet %s: creating request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("akismet %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", resp.Header, fmt.Errorf("akismet %s: unexpected status %d", method, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", resp.Header, fmt.Errorf("akismet %s: reading response: %w", method, err)
	}
	return strings.TrimSpace(string(raw)), resp.Header, nil
}

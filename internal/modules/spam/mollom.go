package spam

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const mollomTimeLayout = "2006-01-02T15:04:05.000-0700"

// Mollom spam classes returned by checkContent.
const (
	mollomHam    = 1
	mollomSpam   = 2
	mollomUnsure = 3
)

type MollomConfig struct {
	PublicKey  string
	PrivateKey string
	// Endpoint serves server.list; the other calls go to the listed servers.
	Endpoint string
}

// mollomAPIError is an answer from a Mollom server (bad key, bad session).
// Unlike transport failures it does not trigger failover to the next server.
type mollomAPIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *mollomAPIError) Error() string {
	return fmt.Sprintf("mollom error %d (status %d): %s", e.Code, e.Status, e.Message)
}

// Mollom classifies content through the Mollom API. Every request is signed
// with the private key; the server list comes from a ServerListCache.
type Mollom struct {
	cfg     MollomConfig
	http    *http.Client
	servers *ServerListCache
	key     keyState
	log     *zap.Logger

	now   func() time.Time
	nonce func() string
}

func NewMollom(cfg MollomConfig, client *http.Client, store Store, log *zap.Logger) *Mollom {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Mollom{
		cfg:   cfg,
		http:  client,
		log:   log,
		now:   time.Now,
		nonce: uuid.NewString,
	}
	m.servers = NewServerListCache(store, m, log.Named("mollom-servers"))
	return m
}

func (*Mollom) Kind() Kind { return KindMollom }

// Servers exposes the cache, mostly for refresh from admin tooling.
func (m *Mollom) Servers() *ServerListCache { return m.servers }

// Available is the "key ok?" gate.
func (m *Mollom) Available(ctx context.Context) (bool, error) {
	if m.cfg.PublicKey == "" || m.cfg.PrivateKey == "" {
		return false, nil
	}
	if valid, known := m.key.get(); known {
		return valid, nil
	}
	servers, err := m.servers.ServerList(ctx)
	if err != nil {
		return false, err
	}
	// a fresh discovery verifies the key before caching the list
	if valid, known := m.key.get(); known {
		return valid, nil
	}
	ok, err := m.VerifyKeyOn(ctx, servers)
	if err != nil {
		m.invalidateOnTransport(ctx, err)
		return false, err
	}
	return ok, nil
}

func (m *Mollom) DiscoverServers(ctx context.Context) ([]string, error) {
	var out struct {
		Servers []string `json:"servers"`
	}
	if err := m.call(ctx, m.cfg.Endpoint, "server.list", nil, &out); err != nil {
		return nil, err
	}
	servers := make([]string, 0, len(out.Servers))
	for _, s := range out.Servers {
		if s = strings.TrimRight(strings.TrimSpace(s), "/"); s != "" {
			servers = append(servers, s)
		}
	}
	return servers, nil
}

// VerifyKeyOn checks the key pair against the given servers and memoizes a
// definitive answer.
func (m *Mollom) VerifyKeyOn(ctx context.Context, servers []string) (bool, error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err := m.callAny(ctx, servers, "mollom.verifyKey", nil, &out)
	var apiErr *mollomAPIError
	switch {
	case errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden):
		m.key.set(false)
		return false, nil
	case err != nil:
		return false, err
	}
	m.key.set(out.OK)
	return out.OK, nil
}

func (m *Mollom) Check(ctx context.Context, ev Evidence) (Result, error) {
	servers, err := m.servers.ServerList(ctx)
	if err != nil {
		return Result{}, err
	}

	form := url.Values{
		"author_name": {ev.Author},
		"author_mail": {ev.AuthorEmail},
		"author_url":  {ev.AuthorURL},
		"author_ip":   {ev.IP},
		"post_body":   {ev.Content},
	}
	var out struct {
		Spam      int    `json:"spam"`
		SessionID string `json:"session_id"`
	}
	if err := m.callAny(ctx, servers, "mollom.checkContent", form, &out); err != nil {
		m.invalidateOnTransport(ctx, err)
		return Result{}, err
	}

	res := Result{SessionID: out.SessionID}
	switch out.Spam {
	case mollomHam:
		res.Verdict = Ham
	case mollomSpam:
		res.Verdict = Spam
	case mollomUnsure:
		res.Verdict = Indecisive
	default:
		return Result{}, fmt.Errorf("mollom checkContent: unknown spam class %d", out.Spam)
	}
	return res, nil
}

// SendFeedback reports a moderation decision ("spam", "profanity",
// "low-quality", "unwanted") for a session id returned by Check.
func (m *Mollom) SendFeedback(ctx context.Context, sessionID, feedback string) error {
	if sessionID == "" {
		return errors.New("mollom feedback: empty session id")
	}
	servers, err := m.servers.ServerList(ctx)
	if err != nil {
		return err
	}
	form := url.Values{"session_id": {sessionID}, "feedback": {feedback}}
	var out struct {
		OK bool `json:"ok"`
	}
	if err := m.callAny(ctx, servers, "mollom.sendFeedback", form, &out); err != nil {
		m.invalidateOnTransport(ctx, err)
		return err
	}
	if !out.OK {
		return errors.New("mollom feedback: rejected")
	}
	return nil
}

// callAny tries servers in order until one answers.
func (m *Mollom) callAny(ctx context.Context, servers []string, method string, form url.Values, out any) error {
	if len(servers) == 0 {
		return fmt.Errorf("mollom %s: no servers", method)
	}
	var lastErr error
	for _, server := range servers {
		err := m.call(ctx, server, method, cloneValues(form), out)
		if err == nil {
			return nil
		}
		var apiErr *mollomAPIError
		if errors.As(err, &apiErr) {
			return err
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

// invalidateOnTransport drops the server list when no server was reachable.
// Must not be called while the cache lock is held.
func (m *Mollom) invalidateOnTransport(ctx context.Context, err error) {
	var apiErr *mollomAPIError
	if errors.As(err, &apiErr) {
		return
	}
	m.servers.Invalidate(context.WithoutCancel(ctx))
}

func (m *Mollom) call(ctx context.Context, server, method string, form url.Values, out any) error {
	if form == nil {
		form = url.Values{}
	}
	m.sign(form)

	endpoint := strings.TrimRight(server, "/") + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("mollom %s: creating request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("mollom %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256<<10))
	if err != nil {
		return fmt.Errorf("mollom %s: reading response: %w", method, err)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		apiErr := &mollomAPIError{Status: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mollom %s: unexpected status %d", method, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("mollom %s: decoding response: %w", method, err)
	}
	return nil
}

func (m *Mollom) sign(form url.Values) {
	ts := m.now().UTC().Format(mollomTimeLayout)
	nonce := m.nonce()
	form.Set("public_key", m.cfg.PublicKey)
	form.Set("time", ts)
	form.Set("nonce", nonce)
	form.Set("hash", MollomSignature(m.cfg.PrivateKey, ts, nonce))
}

// MollomSignature is base64(HMAC-SHA1(private key, time:nonce:private key)).
func MollomSignature(privateKey, ts, nonce string) string {
	mac := hmac.New(sha1.New, []byte(privateKey))
	mac.Write([]byte(ts + ":" + nonce + ":" + privateKey))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

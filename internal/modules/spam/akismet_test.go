package spam

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type akismetServer struct {
	validKey    string
	answer      string
	verifyCalls atomic.Int32
	checkCalls  atomic.Int32
	lastForm    atomic.Value
}

func (s *akismetServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/verify-key", func(w http.ResponseWriter, r *http.Request) {
		s.verifyCalls.Add(1)
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("key") == s.validKey {
			_, _ = w.Write([]byte("valid"))
			return
		}
		_, _ = w.Write([]byte("invalid"))
	})
	mux.HandleFunc("/comment-check", func(w http.ResponseWriter, r *http.Request) {
		s.checkCalls.Add(1)
		require.NoError(t, r.ParseForm())
		s.lastForm.Store(r.PostForm)
		if s.answer == "" {
			w.Header().Set("X-akismet-debug-help", "Empty comment_content")
			_, _ = w.Write([]byte("invalid"))
			return
		}
		_, _ = w.Write([]byte(s.answer))
	})
	return mux
}

func newAkismetFixture(t *testing.T, key, answer string) (*Akismet, *akismetServer) {
	t.Helper()
	fake := &akismetServer{validKey: "good-key", answer: answer}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	a := NewAkismet(AkismetConfig{Key: key, BaseURL: srv.URL + "/", Blog: "https://blog.example"}, srv.Client())
	return a, fake
}

func TestAkismetGateWithoutKeyMakesNoRequest(t *testing.T) {
	a, fake := newAkismetFixture(t, "", "false")

	ok, err := a.Available(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, fake.verifyCalls.Load())
}

func TestAkismetInvalidKeyIsMemoizedAndNeverChecked(t *testing.T) {
	a, fake := newAkismetFixture(t, "bad-key", "true")
	chain := NewChain([]Provider{a}, time.Second, nil)

	for i := 0; i < 3; i++ {
		d := chain.Evaluate(context.Background(), Evidence{Content: "hello"})
		assert.False(t, d.Decisive())
	}
	assert.Equal(t, int32(1), fake.verifyCalls.Load())
	assert.Zero(t, fake.checkCalls.Load())
}

func TestAkismetCheck(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		want    Verdict
		wantErr bool
	}{
		{"spam", "true", Spam, false},
		{"ham", "false", Ham, false},
		{"garbage", "", Indecisive, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, fake := newAkismetFixture(t, "good-key", tt.answer)

			ok, err := a.Available(context.Background())
			require.NoError(t, err)
			require.True(t, ok)

			res, err := a.Check(context.Background(), Evidence{
				IP:          "198.51.100.7",
				UserAgent:   "Mozilla/5.0",
				Referrer:    "https://blog.example/",
				Permalink:   "https://blog.example/about",
				Author:      "Ann",
				AuthorEmail: "ann@example.com",
				Content:     "hello",
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Verdict)

			form := fake.lastForm.Load().(url.Values)
			assert.Equal(t, "good-key", form.Get("api_key"))
			assert.Equal(t, "comment", form.Get("comment_type"))
			assert.Equal(t, "198.51.100.7", form.Get("user_ip"))
			assert.Equal(t, "https://blog.example/about", form.Get("permalink"))
		})
	}
}

func TestAkismetTransportFailureIsNotMemoized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	a := NewAkismet(AkismetConfig{Key: "good-key", BaseURL: srv.URL}, srv.Client())

	_, err := a.Available(context.Background())
	assert.Error(t, err)
	_, known := a.key.get()
	assert.False(t, known)
	srv.Close()
}

// Package spam decides whether a comment submission is spam.
//
// Files in this package:
//   - spam.go: Verdict, Kind, Evidence, Result and the Provider contract
//   - challenge.go: simple question/answer provider
//   - heuristic.go: local keyword / IP blocklist provider
//   - akismet.go: Akismet reputation provider
//   - mollom.go: Mollom reputation provider (server list + signed requests)
//   - servercache.go: process-wide Mollom server list cache
//   - store.go: cache backends (memory, redis)
//   - chain.go: ordered evaluation with failure isolation
//   - registry.go: Kind → Provider mapping built at startup
package spam

import (
	"context"
	"fmt"
	"strings"
)

// Verdict is the outcome of one provider check.
type Verdict int

const (
	Indecisive Verdict = iota
	Ham
	Spam
)

func (v Verdict) String() string {
	switch v {
	case Ham:
		return "ham"
	case Spam:
		return "spam"
	default:
		return "indecisive"
	}
}

// Kind identifies a provider. The numeric order is the chain priority.
type Kind int

const (
	KindChallenge Kind = iota + 1
	KindHeuristic
	KindAkismet
	KindMollom
)

var kindNames = map[Kind]string{
	KindChallenge: "challenge",
	KindHeuristic: "heuristic",
	KindAkismet:   "akismet",
	KindMollom:    "mollom",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a provider identifier such as "akismet".
func ParseKind(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Evidence is everything a provider may look at for one submission.
type Evidence struct {
	IP          string
	UserAgent   string
	Referrer    string
	Permalink   string
	CommentType string
	Author      string
	AuthorEmail string
	AuthorURL   string
	Content     string

	// Answer is the visitor's reply to the simple challenge and
	// ExpectedAnswer the answer the form was rendered with.
	Answer         string
	ExpectedAnswer string
}

// Result is a provider verdict plus an optional correlation id that the
// reputation service can later receive feedback for.
type Result struct {
	Verdict   Verdict
	SessionID string
}

// Provider is one link of the spam check chain.
//
// Available is the credential gate: Check is never called when it returns
// false or an error. Any error from either method is treated as Indecisive.
type Provider interface {
	Kind() Kind
	Available(ctx context.Context) (bool, error)
	Check(ctx context.Context, ev Evidence) (Result, error)
}

// FeedbackSender is implemented by providers that accept moderation feedback
// for a session id they issued.
type FeedbackSender interface {
	SendFeedback(ctx context.Context, sessionID, feedback string) error
}

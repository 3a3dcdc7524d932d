// Package attribution decides which referrer gets credit for a click or lead.
package attribution

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultWindow is how far back a prior click may be used to infer a referrer.
const DefaultWindow = 30 * 24 * time.Hour

const maxRefCodeLen = 64

// Method records how a referrer was found.
type Method string

const (
	MethodNone        Method = "none"
	MethodCode        Method = "code"
	MethodRecentClick Method = "recent_click"
)

// Source is the lead-facing classification of a resolution.
type Source string

const (
	SourceNone Source = "NONE"
	SourceForm Source = "FORM"
	SourceLink Source = "LINK"
)

// Store is the read side the resolver needs. Both lookups report found=false rather
// than an error when nothing matches.
type Store interface {
	UserIDByRefCode(ctx context.Context, code string) (uuid.UUID, bool, error)
	LatestClickUserID(ctx context.Context, ipHash string, since time.Time) (uuid.UUID, bool, error)
}

type Input struct {
	RefCode string
	IPHash  string
	// CodeOnly disables the recent-click fallback. Click tracking uses it: a click is
	// always credited to the link owner or not recorded at all.
	CodeOnly bool
}

type Result struct {
	ReferrerID uuid.UUID
	Method     Method
}

func (r Result) Found() bool {
	return r.Method != MethodNone
}

// LeadSource maps the resolution method onto the lead attribution source.
func (r Result) LeadSource() Source {
	switch r.Method {
	case MethodCode:
		return SourceForm
	case MethodRecentClick:
		return SourceLink
	default:
		return SourceNone
	}
}

type Resolver struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

type Option func(*Resolver)

func WithWindow(window time.Duration) Option {
	return func(r *Resolver) {
		if window > 0 {
			r.window = window
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(store Store, opts ...Option) *Resolver {
	r := &Resolver{store: store, window: DefaultWindow, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve tries the explicit code first, matched exactly and case-sensitively, then the
// most recent click from the same hashed IP inside the window. When several clicks share
// the newest timestamp the store may return any of them.
func (r *Resolver) Resolve(ctx context.Context, in Input) (Result, error) {
	if ValidRefCode(in.RefCode) {
		userID, ok, err := r.store.UserIDByRefCode(ctx, in.RefCode)
		if err != nil {
			return Result{}, fmt.Errorf("lookup ref code: %w", err)
		}
		if ok {
			return Result{ReferrerID: userID, Method: MethodCode}, nil
		}
	}

	if in.CodeOnly || in.IPHash == "" {
		return Result{Method: MethodNone}, nil
	}

	since := r.now().Add(-r.window)
	userID, ok, err := r.store.LatestClickUserID(ctx, in.IPHash, since)
	if err != nil {
		return Result{}, fmt.Errorf("lookup recent click: %w", err)
	}
	if ok {
		return Result{ReferrerID: userID, Method: MethodRecentClick}, nil
	}
	return Result{Method: MethodNone}, nil
}

// ValidRefCode reports whether code is worth looking up. Anything else is treated as an
// unknown code.
func ValidRefCode(code string) bool {
	if code == "" || len(code) > maxRefCodeLen {
		return false
	}
	for _, c := range code {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// HashIP returns the hex sha256 of a raw client IP, or "" when ip is empty. Raw IPs are
// never stored.
func HashIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

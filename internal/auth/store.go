package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/liberty-web/internal/cache"
	"github.com/dropDatabas3/liberty-web/internal/security/secretbox"
	tokens "github.com/dropDatabas3/liberty-web/internal/security/token"
)

const (
	sessionPrefix = "sess:"
	pendingPrefix = "pending:"
)

// errNoSession: no hay sesión utilizable (inexistente, vencida o ilegible).
var errNoSession = errors.New("auth: no session")

// store sella los valores con AES-GCM antes de pasarlos al cache. La key
// del cache va como AAD, así un blob no se puede mover a otra key.
type store struct {
	cache cache.Client
	box   *secretbox.Box
}

func sessionKey(id string) string { return sessionPrefix + tokens.SHA256Base64URL(id) }
func pendingKey(state string) string {
	return pendingPrefix + tokens.SHA256Base64URL(state)
}

func (s *store) put(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sealed, err := s.box.Seal(raw, []byte(key))
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, key, []byte(sealed), ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

func (s *store) open(key string, sealed []byte, v any) error {
	raw, err := s.box.Open(string(sealed), []byte(key))
	if err != nil {
		return errNoSession
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errNoSession
	}
	return nil
}

func (s *store) getSession(ctx context.Context, id string) (*Session, error) {
	key := sessionKey(id)
	b, err := s.cache.Get(ctx, key)
	if cache.IsNotFound(err) {
		return nil, errNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	var sess Session
	if err := s.open(key, b, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *store) putSession(ctx context.Context, id string, sess *Session, ttl time.Duration) error {
	return s.put(ctx, sessionKey(id), sess, ttl)
}

func (s *store) deleteSession(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, sessionKey(id)); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

func (s *store) putPending(ctx context.Context, p *pending, ttl time.Duration) error {
	return s.put(ctx, pendingKey(p.State), p, ttl)
}

// takePending consume el pending (uso único).
func (s *store) takePending(ctx context.Context, state string) (*pending, error) {
	key := pendingKey(state)
	b, err := s.cache.Take(ctx, key)
	if cache.IsNotFound(err) {
		return nil, ErrStateExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	var p pending
	if err := s.open(key, b, &p); err != nil {
		return nil, ErrStateInvalid
	}
	if p.State != state {
		return nil, ErrStateInvalid
	}
	return &p, nil
}

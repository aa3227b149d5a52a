package cart

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// SessionKey is the session attribute holding the serialized cart.
const SessionKey = "cart"

// SessionStore reads and writes the typed cart at the request boundary. Each
// request works on a snapshot and writes it back whole; concurrent requests of
// one session race with last write wins.
type SessionStore struct {
	store sessions.Store
	name  string
}

func NewSessionStore(store sessions.Store, name string) *SessionStore {
	return &SessionStore{store: store, name: name}
}

// NewCookieStore builds the signed cookie store used in production.
func NewCookieStore(secret []byte, maxAge int, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Load returns the request's cart. A session that cannot be decoded (expired
// signing key, tampered cookie) yields an empty cart together with the error.
func (s *SessionStore) Load(r *http.Request) (domain.Cart, error) {
	sess, err := s.store.Get(r, s.name)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("decode session: %w", err)
	}
	return decodeCart(sess.Values[SessionKey])
}

func (s *SessionStore) Save(w http.ResponseWriter, r *http.Request, c domain.Cart) error {
	// Get hands back a fresh session even when the old cookie is unreadable.
	sess, _ := s.store.Get(r, s.name)
	if sess == nil {
		return fmt.Errorf("session %q unavailable", s.name)
	}

	data, err := json.Marshal(c.Entries)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	sess.Values[SessionKey] = string(data)

	return sess.Save(r, w)
}

func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	return s.Save(w, r, domain.Cart{})
}

// decodeCart accepts the entry list written by Save and the older key->quantity
// mapping. Aliases of one item merge into a single entry and out-of-range
// quantities are dropped.
func decodeCart(v any) (domain.Cart, error) {
	raw, ok := v.(string)
	if !ok || raw == "" {
		return domain.Cart{}, nil
	}

	var entries []domain.CartEntry
	if err := json.Unmarshal([]byte(raw), &entries); err == nil {
		var c domain.Cart
		for _, e := range entries {
			if e.Quantity <= 0 || e.Quantity > domain.MaxLineQuantity {
				continue
			}
			c.Set(e.Key, c.Quantity(e.Key)+e.Quantity)
		}
		return c, nil
	}

	var legacy map[string]int
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return domain.Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	return domain.CartFromMap(legacy), nil
}

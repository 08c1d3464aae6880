package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pyquest-gamification/internal/docstore"
	"pyquest-gamification/internal/domain"
)

// Users is the typed repository over users/{uid}. Every mutation goes through
// Mutate so invariants are enforced where data enters the engine.
type Users struct {
	store docstore.Store
	now   func() time.Time
}

func NewUsers(store docstore.Store, now func() time.Time) *Users {
	return &Users{store: store, now: clockOrNow(now)}
}

func (r *Users) Get(ctx context.Context, uid string) (domain.User, error) {
	doc, ok, err := r.store.Get(ctx, docstore.Users, uid)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return decodeUser(uid, doc.Data)
}

// Ensure creates the user on first sight and returns the stored record.
func (r *Users) Ensure(ctx context.Context, uid string, profile domain.Profile) (domain.User, bool, error) {
	fresh, err := domain.NewUser(uid, profile, r.now())
	if err != nil {
		return domain.User{}, false, err
	}
	var (
		out     domain.User
		created bool
	)
	err = r.store.Update(ctx, docstore.Users, uid, func(data map[string]any) error {
		created = false
		if len(data) > 0 {
			u, err := decodeUser(uid, data)
			if err != nil {
				return err
			}
			out = u
			return errUnchanged
		}
		enc, err := docstore.Encode(fresh)
		if err != nil {
			return err
		}
		replaceData(data, enc)
		out, created = fresh, true
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return domain.User{}, false, err
	}
	return out, created, nil
}

// Mutate applies fn to the stored user atomically. A missing user yields
// domain.ErrUserNotFound without creating a document. fn may run more than
// once when the backend retries.
func (r *Users) Mutate(ctx context.Context, uid string, fn func(u *domain.User) error) (domain.User, error) {
	var out domain.User
	err := r.store.Update(ctx, docstore.Users, uid, func(data map[string]any) error {
		if len(data) == 0 {
			return domain.ErrUserNotFound
		}
		u, err := decodeUser(uid, data)
		if err != nil {
			return err
		}
		if err := fn(&u); err != nil {
			return err
		}
		u.Normalize()
		enc, err := docstore.Encode(u)
		if err != nil {
			return err
		}
		replaceData(data, enc)
		out = u
		return nil
	})
	return out, err
}

// All returns every user ordered by id.
func (r *Users) All(ctx context.Context) ([]domain.User, error) {
	docs, err := r.store.Query(ctx, docstore.Users, docstore.Query{})
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		u, err := decodeUser(doc.ID, doc.Data)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func decodeUser(uid string, data map[string]any) (domain.User, error) {
	var u domain.User
	if err := docstore.Decode(data, &u); err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", uid, err)
	}
	if u.ID == "" {
		u.ID = uid
	}
	u.Normalize()
	return u, nil
}

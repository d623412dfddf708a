package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sanacare/go-care/internal/domain/user"
)

// UserDirectory is an in-memory user.Directory. Beyond the read-only contract
// it exposes Put and SetDeviceToken so development mode and tests can manage
// the roster.
type UserDirectory struct {
	mu   sync.RWMutex
	rows map[string]*user.User
}

// NewUserDirectory creates an empty directory.
func NewUserDirectory() *UserDirectory {
	return &UserDirectory{rows: make(map[string]*user.User)}
}

// Put inserts or replaces a user.
func (d *UserDirectory) Put(u *user.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := *u
	d.rows[u.ID] = &c
}

// SetDeviceToken updates the stored token for a user.
func (d *UserDirectory) SetDeviceToken(userID, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.rows[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.DeviceToken = token
	return nil
}

func (d *UserDirectory) Lookup(_ context.Context, userID string) (*user.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.rows[userID]
	if !ok {
		return nil, user.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (d *UserDirectory) UsersWithDeviceToken(_ context.Context) ([]*user.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*user.User
	for _, u := range d.rows {
		if u.DeviceToken != "" {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

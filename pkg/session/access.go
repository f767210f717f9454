package session

import "sync"

// User is the identity of the acting editor
type User string

// AccessChecker is the access-control collaborator consulted before every
// mutation
type AccessChecker interface {
	HasWriteAccess(user User, resource string) bool
}

// AllowAll grants write access to every user
type AllowAll struct{}

func (AllowAll) HasWriteAccess(User, string) bool { return true }

// AllowList grants write access to a fixed set of users on every resource
type AllowList struct {
	mu    sync.RWMutex
	users map[User]bool
}

// NewAllowList creates an allow list holding users
func NewAllowList(users ...User) *AllowList {
	a := &AllowList{users: make(map[User]bool, len(users))}
	for _, u := range users {
		a.users[u] = true
	}
	return a
}

// Grant adds a user
func (a *AllowList) Grant(user User) {
	a.mu.Lock()
	a.users[user] = true
	a.mu.Unlock()
}

// Revoke removes a user
func (a *AllowList) Revoke(user User) {
	a.mu.Lock()
	delete(a.users, user)
	a.mu.Unlock()
}

func (a *AllowList) HasWriteAccess(user User, _ string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.users[user]
}

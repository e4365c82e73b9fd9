package api

import "sync"

// User is one record in the demo user store.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Store is the demo's in-memory user list. A single mutex guards it; nothing
// survives process restart, which is the point of the demo.
type Store struct {
	mu     sync.Mutex
	users  []User
	nextID int
}

// NewStore seeds the store with the demo users.
func NewStore() *Store {
	return &Store{
		users: []User{
			{ID: 1, Name: "Alice Johnson", Email: "alice@example.com", Role: "admin"},
			{ID: 2, Name: "Bob Smith", Email: "bob@example.com", Role: "user"},
			{ID: 3, Name: "Charlie Brown", Email: "charlie@example.com", Role: "user"},
		},
		nextID: 4,
	}
}

// List returns a copy of all users.
func (s *Store) List() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, len(s.users))
	copy(out, s.users)
	return out
}

// Get looks a user up by ID.
func (s *Store) Get(id int) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			return user, true
		}
	}
	return User{}, false
}

// Create appends a new user and returns it with its assigned ID.
func (s *Store) Create(name, email, role string) User {
	if role == "" {
		role = "user"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user := User{ID: s.nextID, Name: name, Email: email, Role: role}
	s.nextID++
	s.users = append(s.users, user)
	return user
}

package devserver

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kindra-app/kindra-client/internal/chat"
	"github.com/kindra-app/kindra-client/internal/profile"
	"github.com/kindra-app/kindra-client/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// User is a stored dev account
type User struct {
	ID           string
	Email        string
	Phone        string
	PasswordHash []byte

	PersonalInfo     *profile.PersonalInfo
	ProfilePictures  []profile.ProfilePicture
	PersonalFreeForm *profile.PersonalFreeForm
	ValuesBeliefs    *profile.ValuesBeliefs
}

// Document renders the user as the backend's full user document
func (u *User) Document() profile.UserDocument {
	return profile.UserDocument{
		ID:                    u.ID,
		Email:                 u.Email,
		PersonalInfo:          u.PersonalInfo,
		ProfilePictures:       u.ProfilePictures,
		PersonalFreeForm:      u.PersonalFreeForm,
		ValuesBeliefsAndGoals: u.ValuesBeliefs,
	}
}

// Store is the dev server's in-memory user and chat storage
type Store struct {
	mu       sync.RWMutex
	users    map[string]*User
	byEmail  map[string]string
	byPhone  map[string]string
	messages map[string][]chat.Message
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:    make(map[string]*User),
		byEmail:  make(map[string]string),
		byPhone:  make(map[string]string),
		messages: make(map[string][]chat.Message),
	}
}

// CreateUser registers a new account with a bcrypt password hash
func (s *Store) CreateUser(email, phone, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.InternalError("failed to hash password")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()

	if email != "" {
		if _, exists := s.byEmail[email]; exists {
			return nil, errors.ErrConflict
		}
	}
	if phone != "" {
		if _, exists := s.byPhone[phone]; exists {
			return nil, errors.ErrConflict
		}
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
	}
	s.users[user.ID] = user
	if email != "" {
		s.byEmail[email] = user.ID
	}
	if phone != "" {
		s.byPhone[phone] = user.ID
	}
	return user, nil
}

// Authenticate checks a password against the account matching email or
// phone
func (s *Store) Authenticate(email, phone, password string) (*User, error) {
	s.mu.RLock()
	var id string
	var ok bool
	if email != "" {
		id, ok = s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	}
	if !ok && phone != "" {
		id, ok = s.byPhone[phone]
	}
	user := s.users[id]
	s.mu.RUnlock()

	if !ok || user == nil {
		return nil, errors.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, errors.ErrUnauthorized
	}
	return user, nil
}

// Get returns a user by ID
func (s *Store) Get(id string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	return user, ok
}

// UpdatePersonalInfo replaces the user's personal info section
func (s *Store) UpdatePersonalInfo(id string, info profile.PersonalInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return errors.NotFoundError("user")
	}
	user.PersonalInfo = &info
	return nil
}

// AddPicture prepends a picture URL so it becomes the primary picture
func (s *Store) AddPicture(id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return errors.NotFoundError("user")
	}
	user.ProfilePictures = append([]profile.ProfilePicture{{URL: url}}, user.ProfilePictures...)
	return nil
}

// AppendMessage stores a chat message and returns it with server-side
// fields filled in
func (s *Store) AppendMessage(conversationID, senderID, body string) chat.Message {
	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		SentAt:         time.Now().UTC(),
	}
	s.mu.Lock()
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	s.mu.Unlock()
	return msg
}

// History returns the conversation's messages in send order
func (s *Store) History(conversationID string) []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.messages[conversationID]
	out := make([]chat.Message, len(history))
	copy(out, history)
	return out
}

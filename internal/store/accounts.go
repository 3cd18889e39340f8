package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haruo/melnotify/pkg/models"
)

const accountsFile = "users.json"

// AccountStore persists linked accounts as a single JSON document. Every
// mutation is a full read-modify-write behind the mutex, so there is exactly
// one writer at a time within the process.
type AccountStore struct {
	path string
	mu   sync.Mutex
}

// NewAccountStore creates an account store under dir
func NewAccountStore(dir string) *AccountStore {
	return &AccountStore{path: filepath.Join(dir, accountsFile)}
}

// Load returns all known accounts. A missing file yields an empty list.
func (s *AccountStore) Load() ([]*models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save persists the entire collection
func (s *AccountStore) Save(accounts []*models.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(accounts)
}

// FindByChatID returns the account linked to a chat identity
func (s *AccountStore) FindByChatID(chatUserID string) (*models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.ChatUserID == chatUserID {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

// FindByLinkState returns the account holding the given link state
func (s *AccountStore) FindByLinkState(state string) (*models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.LinkState == state {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

// Create registers a new account for a chat identity with a fresh link state
// and empty mailbox fields. Returns ErrAlreadyExists if the chat identity is
// already registered.
func (s *AccountStore) Create(chatUserID string) (*models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.ChatUserID == chatUserID {
			return nil, ErrAlreadyExists
		}
	}

	account := &models.UserAccount{
		ChatUserID: chatUserID,
		LinkState:  uuid.NewString(),
	}
	accounts = append(accounts, account)
	if err := s.save(accounts); err != nil {
		return nil, err
	}
	return account, nil
}

// UpsertTokens completes the OAuth link for the account identified by its
// link state: stores tokens and the mailbox address, and fills in default
// server settings when none are set. Returns ErrNotFound for an unknown
// state instead of silently discarding the completion.
func (s *AccountStore) UpsertTokens(state, accessToken, refreshToken string, expiry time.Time, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if a.LinkState != state {
			continue
		}
		a.EmailAddress = email
		a.AccessToken = accessToken
		a.RefreshToken = refreshToken
		a.TokenExpiry = expiry
		if a.MailServer == "" {
			a.MailServer, a.MailPort = defaultMailServer(email)
		}
		return s.save(accounts)
	}
	return fmt.Errorf("link state %q: %w", state, ErrNotFound)
}

// UpdateAccessToken replaces the stored access token for a chat identity.
// Called by the poller right after a successful refresh.
func (s *AccountStore) UpdateAccessToken(chatUserID, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.load()
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if a.ChatUserID == chatUserID {
			a.AccessToken = accessToken
			return s.save(accounts)
		}
	}
	return fmt.Errorf("chat user %q: %w", chatUserID, ErrNotFound)
}

func (s *AccountStore) load() ([]*models.UserAccount, error) {
	var accounts []*models.UserAccount
	if err := readJSON(s.path, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *AccountStore) save(accounts []*models.UserAccount) error {
	return writeJSON(s.path, accounts)
}

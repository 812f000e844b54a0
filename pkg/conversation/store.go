// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conversation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	titleMaxChars   = 60
	previewMaxChars = 40
)

// Store is the process-wide, in-memory Conversation Store. All mutations
// go through it; reads take a read lock.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{conversations: make(map[string]*Conversation)}
}

// Create starts a new, empty conversation and returns it.
func (s *Store) Create() *Conversation {
	now := time.Now()
	c := &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.conversations[c.ID] = c
	s.mu.Unlock()
	return c
}

// Get returns a conversation by id, or ok=false if it does not exist.
func (s *Store) Get(id string) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	return c, ok
}

// List returns every conversation, most recently updated first.
func (s *Store) List() []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].UpdatedAt.After(out[j-1].UpdatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Delete removes a conversation. Deleting one that does not exist is not
// an error.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
}

// ErrNotFound reports an unknown conversation id. Append does not return
// it: an unseen id makes Append create the conversation.
type ErrNotFound struct{ ID string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("conversation %q not found", e.ID) }

// Append adds a message to a conversation, creating it first if id is
// unseen, and derives title/preview from the first user message.
func (s *Store) Append(id string, role Role, content string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		now := time.Now()
		c = &Conversation{ID: id, CreatedAt: now, UpdatedAt: now}
		s.conversations[id] = c
	}

	now := time.Now()
	c.Messages = append(c.Messages, Message{Role: role, Content: content, Timestamp: now})
	c.UpdatedAt = now

	if c.Title == "" && role == RoleUser {
		c.Title = truncateRunes(content, titleMaxChars)
		c.Preview = truncateRunes(content, previewMaxChars)
	}

	return c, nil
}

// truncateRunes truncates s to at most n runes, never splitting a
// multi-byte rune.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// pkg/htpasswd/htpasswd.go

// Package htpasswd manages the shared nginx basic-auth credential store:
// one username:hash pair per line, consulted by auth_basic_user_file. The
// file may hold entries from unrelated deployments, so every operation is
// scoped to a single username and never truncates the rest.
package htpasswd

import (
	"context"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/rdock-dev/rdockctl/pkg/crypto"
)

// Entry is one credential line. Uniqueness is by username, last write wins.
type Entry struct {
	Username string
	Hash     string
}

// Store reads and mutates one htpasswd file on an injected filesystem.
type Store struct {
	Fs   afero.Fs
	Path string
}

// Load parses the store, preserving entry order. A missing file yields an
// empty slice and no error; Save decides whether to create it.
func (s *Store) Load() ([]Entry, error) {
	data, err := afero.ReadFile(s.Fs, s.Path)
	if err != nil {
		if exists, _ := afero.Exists(s.Fs, s.Path); !exists {
			return nil, nil
		}
		return nil, cerr.Wrapf(err, "read %s", s.Path)
	}

	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		user, hash, ok := strings.Cut(line, ":")
		if !ok {
			// Foreign garbage lines are preserved verbatim on save by
			// keeping them as entries with an empty hash marker.
			entries = append(entries, Entry{Username: line, Hash: ""})
			continue
		}
		entries = append(entries, Entry{Username: user, Hash: hash})
	}
	return entries, nil
}

func (s *Store) save(entries []Entry) error {
	var sb strings.Builder
	for _, e := range entries {
		if e.Hash == "" {
			sb.WriteString(e.Username)
		} else {
			sb.WriteString(e.Username + ":" + e.Hash)
		}
		sb.WriteString("\n")
	}
	// 0640: nginx workers read it via the www-data group, nobody else.
	if err := afero.WriteFile(s.Fs, s.Path, []byte(sb.String()), 0640); err != nil {
		return cerr.Wrapf(err, "write %s", s.Path)
	}
	return nil
}

// Upsert hashes the password and adds or replaces the entry for username.
// Entries for other usernames are untouched, which keeps append-mode
// deployments that share the store safe.
func (s *Store) Upsert(ctx context.Context, username, password string) error {
	log := otelzap.Ctx(ctx)

	if username == "" {
		return cerr.New("username must not be empty")
	}
	if strings.Contains(username, ":") {
		return cerr.Newf("username %q must not contain ':'", username)
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return cerr.Wrap(err, "hash password")
	}

	entries, err := s.Load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].Username == username {
			entries[i].Hash = hash
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, Entry{Username: username, Hash: hash})
	}

	if err := s.save(entries); err != nil {
		return err
	}

	log.Info("Credential store updated",
		zap.String("path", s.Path),
		zap.String("username", username),
		zap.Bool("replaced", replaced),
		zap.Int("entries", len(entries)))
	return nil
}

// Remove deletes the entry for username, leaving everything else intact.
// Unknown usernames are a no-op.
func (s *Store) Remove(ctx context.Context, username string) error {
	entries, err := s.Load()
	if err != nil {
		return err
	}

	kept := entries[:0]
	removed := false
	for _, e := range entries {
		if e.Username == username {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		return nil
	}

	otelzap.Ctx(ctx).Info("Credential removed",
		zap.String("path", s.Path), zap.String("username", username))
	return s.save(kept)
}

// Verify checks a password against the stored hash, mirroring what nginx
// will do at request time. Used as a post-upsert self check.
func (s *Store) Verify(username, password string) (bool, error) {
	entries, err := s.Load()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Username == username && e.Hash != "" {
			return crypto.ComparePasswordBool(e.Hash, password), nil
		}
	}
	return false, nil
}

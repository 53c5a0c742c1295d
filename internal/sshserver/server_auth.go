// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/ssh"
)

// tokenCleanupInterval is how often expired tokens are purged.
const tokenCleanupInterval = 5 * time.Minute

// GenerateToken creates a login token valid for the configured TTL.
func (s *Server) GenerateToken(label string) (*Token, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.clock.Now()
	token := &Token{
		Value:     TokenValue(hex.EncodeToString(tokenBytes)),
		Label:     label,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}

	s.tokenMu.Lock()
	s.tokens[token.Value] = token
	s.tokenMu.Unlock()

	s.logger.Debug("generated token", "label", label)
	return token, nil
}

// ValidateToken returns the token if it exists and has not expired.
// Expired tokens are revoked on sight.
func (s *Server) ValidateToken(value TokenValue) (*Token, bool) {
	s.tokenMu.RLock()
	token, exists := s.tokens[value]
	s.tokenMu.RUnlock()

	if !exists {
		return nil, false
	}
	if s.clock.Now().After(token.ExpiresAt) {
		s.RevokeToken(value)
		return nil, false
	}
	return token, true
}

// RevokeToken invalidates a token.
func (s *Server) RevokeToken(value TokenValue) {
	s.tokenMu.Lock()
	delete(s.tokens, value)
	s.tokenMu.Unlock()
}

// RevokeTokensForLabel invalidates every token generated with label.
func (s *Server) RevokeTokensForLabel(label string) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	for value, token := range s.tokens {
		if token.Label == label {
			delete(s.tokens, value)
		}
	}
}

// GetConnectionInfo generates a token and returns what a client needs to log in.
// Returns an error if the server is not running.
func (s *Server) GetConnectionInfo(label string) (*ConnectionInfo, error) {
	if !s.IsRunning() {
		return nil, fmt.Errorf("SSH server is not running (state: %s)", s.State())
	}

	token, err := s.GenerateToken(label)
	if err != nil {
		return nil, err
	}

	user := s.cfg.User
	if user == "" {
		user = "fab"
	}
	return &ConnectionInfo{
		Host:     s.cfg.Host,
		Port:     s.Port(),
		User:     user,
		Token:    token.Value,
		ExpireAt: token.ExpiresAt,
	}, nil
}

// cleanupExpiredTokens periodically removes expired tokens until shutdown.
func (s *Server) cleanupExpiredTokens() {
	ctx := s.Context()
	if ctx == nil {
		return
	}

	ticker := time.NewTicker(tokenCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeExpiredTokens()
		}
	}
}

func (s *Server) purgeExpiredTokens() {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	now := s.clock.Now()
	for value, token := range s.tokens {
		if now.After(token.ExpiresAt) {
			delete(s.tokens, value)
		}
	}
}

// passwordHandler accepts the static password or any valid token.
func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	if !s.userAllowed(ctx.User()) {
		s.logger.Warn("rejected login for unknown user", "user", ctx.User())
		return false
	}
	if s.cfg.Password != "" && subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1 {
		return true
	}
	token, valid := s.ValidateToken(TokenValue(password))
	if !valid {
		s.logger.Warn("invalid password or token", "user", ctx.User())
		return false
	}
	ctx.SetValue("token", token)
	s.logger.Debug("token authentication successful", "label", token.Label)
	return true
}

// publicKeyHandler accepts keys listed in the authorized keys file.
func (s *Server) publicKeyHandler(ctx ssh.Context, key ssh.PublicKey) bool {
	if !s.userAllowed(ctx.User()) {
		return false
	}
	for _, allowed := range s.authorizedKeys {
		if ssh.KeysEqual(key, allowed) {
			return true
		}
	}
	return false
}

func (s *Server) userAllowed(user string) bool {
	return s.cfg.User == "" || s.cfg.User == user
}

// loadAuthorizedKeys parses an OpenSSH authorized_keys file. Blank lines and
// comments are skipped.
func loadAuthorizedKeys(path string) ([]ssh.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read authorized keys: %w", err)
	}

	var keys []ssh.PublicKey
	sc := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; sc.Scan(); line++ {
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		key, _, _, _, err := ssh.ParseAuthorizedKey(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		keys = append(keys, key)
	}
	return keys, sc.Err()
}

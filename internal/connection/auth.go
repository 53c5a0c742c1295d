// SPDX-License-Identifier: MPL-2.0

package connection

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/target"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// defaultIdentityFiles are tried when ssh.identity_files is empty.
var defaultIdentityFiles = []string{
	"~/.ssh/id_ed25519",
	"~/.ssh/id_ecdsa",
	"~/.ssh/id_rsa",
}

// clientConfig assembles authentication and host key verification for spec.
// The returned cleanup closes the agent socket, if one was opened.
func clientConfig(spec target.Spec, cfg config.SSHConfig) (*ssh.ClientConfig, func(), error) {
	cleanup := func() {}

	var methods []ssh.AuthMethod
	if cfg.UseAgent {
		if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
			if conn, err := net.Dial("unix", sock); err == nil {
				methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
				cleanup = func() { _ = conn.Close() }
			}
		}
	}

	signers, err := loadSigners(cfg.IdentityFiles)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}
	if len(methods) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("%w: no agent, identity file, or password available", ErrAuthFailed)
	}

	hostKeyCallback, err := hostKeyCallback(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &ssh.ClientConfig{
		User:            spec.User,
		Auth:            methods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.ConnectTimeout,
	}, cleanup, nil
}

// loadSigners parses private keys from paths, skipping files that do not exist.
// Passphrase-protected keys are skipped as well; use the agent for those.
func loadSigners(paths []string) ([]ssh.Signer, error) {
	explicit := len(paths) > 0
	if !explicit {
		paths = defaultIdentityFiles
	}

	var signers []ssh.Signer
	for _, p := range paths {
		path, err := expandHome(p)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read identity file %s: %w", path, err)
		}
		signer, err := ssh.ParsePrivateKey(data)
		var passErr *ssh.PassphraseMissingError
		switch {
		case errors.As(err, &passErr):
			continue
		case err != nil && explicit:
			return nil, fmt.Errorf("parse identity file %s: %w", path, err)
		case err != nil:
			continue
		}
		signers = append(signers, signer)
	}
	return signers, nil
}

func hostKeyCallback(cfg config.SSHConfig) (ssh.HostKeyCallback, error) {
	if cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // opted into via ssh.insecure_ignore_host_key
	}
	path := cfg.KnownHostsFile
	if path == "" {
		path = "~/.ssh/known_hosts"
	}
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: load known hosts %s: %w", ErrHostKey, path, err)
	}
	return cb, nil
}

// classifyHandshakeError tags host key and authentication failures so callers
// can match them with errors.Is.
func classifyHandshakeError(err error) error {
	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		if len(keyErr.Want) == 0 {
			return fmt.Errorf("%w: host is not in known_hosts: %w", ErrHostKey, err)
		}
		return fmt.Errorf("%w: host key changed: %w", ErrHostKey, err)
	}
	if strings.Contains(err.Error(), "unable to authenticate") {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	return err
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

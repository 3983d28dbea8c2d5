package peer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/geko/internal/constants"
)

var findProcessFunc = ps.FindProcess

// ErrNoPeer is returned when no live peer daemon advertises itself.
var ErrNoPeer = errors.New("geko peer is not running")

// Lockfile advertises a listening peer daemon as "port|pid|secret".
type Lockfile struct {
	Port   int
	PID    int
	Secret string
}

// NewSecret returns a random shared secret for the upgrade handshake.
func NewSecret() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// LockfilePath returns the lockfile location inside dir.
func LockfilePath(dir string) string {
	return filepath.Join(dir, constants.PeerLockfileName)
}

// WriteLockfile writes lf into dir, readable by the current user only.
func WriteLockfile(dir string, lf Lockfile) (string, error) {
	if err := validatePort(lf.Port); err != nil {
		return "", err
	}
	if strings.TrimSpace(lf.Secret) == "" {
		return "", errors.New("secret is empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create lockfile dir: %w", err)
	}

	path := LockfilePath(dir)
	content := fmt.Sprintf("%d|%d|%s", lf.Port, lf.PID, lf.Secret)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write lockfile: %w", err)
	}
	return path, nil
}

// RemoveLockfile deletes the lockfile in dir. A missing file is not an error.
func RemoveLockfile(dir string) error {
	if err := os.Remove(LockfilePath(dir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}

// ReadLockfile parses the lockfile in dir and checks that the advertised
// process is still a running geko.
func ReadLockfile(dir string) (Lockfile, error) {
	content, err := os.ReadFile(LockfilePath(dir))
	if err != nil {
		return Lockfile{}, ErrNoPeer
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return Lockfile{}, errors.New("lockfile is malformed")
	}

	if strings.TrimSpace(parts[0]) == "" {
		return Lockfile{}, errors.New("port in lockfile is empty")
	}
	port, err := strconv.Atoi(parts[0])
	if err != nil {
		return Lockfile{}, errors.New("invalid port number in lockfile")
	}
	if err := validatePort(port); err != nil {
		return Lockfile{}, err
	}

	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return Lockfile{}, errors.New("invalid process ID in lockfile")
	}

	secret := parts[2]
	if strings.TrimSpace(secret) == "" {
		return Lockfile{}, errors.New("secret in lockfile is empty")
	}

	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return Lockfile{}, ErrNoPeer
	}
	if !strings.HasPrefix(process.Executable(), constants.PeerExecutable) {
		return Lockfile{}, fmt.Errorf("process with PID %d is not %s (is %s)", pid, constants.PeerExecutable, process.Executable())
	}

	return Lockfile{Port: port, PID: pid, Secret: secret}, nil
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port number %d is outside valid range (1-65535)", port)
	}
	return nil
}

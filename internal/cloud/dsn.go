// Package cloud connects geko to the account database that plays the role of
// the cloud channel, and replicates the local store to it.
package cloud

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/julianstephens/geko/internal/constants"
	"github.com/julianstephens/geko/internal/keyring"
	"github.com/julianstephens/geko/internal/storage/postgres"
)

// ErrNotConfigured means no connection string was found in any source.
var ErrNotConfigured = errors.New("cloud database is not configured")

// Source names where a connection string came from.
type Source string

const (
	SourceNone    Source = ""
	SourceFlag    Source = "flag"
	SourceEnv     Source = "env"
	SourceKeyring Source = "keyring"
)

var getKeyringDSN = keyring.GetConnectionString

// ResolveDSN picks the connection string from the --cloud flag, then the
// environment, then the OS keyring. A flag value must not embed a password.
func ResolveDSN(flagValue string) (string, Source, error) {
	if dsn := strings.TrimSpace(flagValue); dsn != "" {
		if _, err := postgres.ValidateConnString(dsn); err != nil {
			return "", SourceNone, err
		}
		return dsn, SourceFlag, nil
	}

	if dsn := strings.TrimSpace(os.Getenv(constants.CloudEnvVar)); dsn != "" {
		return dsn, SourceEnv, nil
	}

	dsn, err := getKeyringDSN()
	switch {
	case err == nil && strings.TrimSpace(dsn) != "":
		return dsn, SourceKeyring, nil
	case err == nil, errors.Is(err, keyring.ErrNotFound):
		return "", SourceNone, ErrNotConfigured
	default:
		return "", SourceNone, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
}

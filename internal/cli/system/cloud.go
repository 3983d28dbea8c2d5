package system

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/geko/internal/cli"
	"github.com/julianstephens/geko/internal/cloud"
	"github.com/julianstephens/geko/internal/keyring"
	"github.com/julianstephens/geko/internal/storage/postgres"
)

type CloudCmd struct {
	Set    CloudSetCmd    `cmd:"" help:"Store the cloud database connection string in the OS keyring."`
	Get    CloudGetCmd    `cmd:"" help:"Show the stored connection string with the password masked."`
	Delete CloudDeleteCmd `cmd:"" help:"Remove the stored connection string."`
	Status CloudStatusCmd `cmd:"" help:"Check the keyring and the cloud database." default:"1"`
	Push   CloudPushCmd   `cmd:"" help:"Replicate with the cloud database once."`
}

// CloudSetCmd stores the cloud connection string in the OS keyring
type CloudSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string to store in keyring"`
}

func (cmd *CloudSetCmd) Run(ctx *cli.Context) error {
	if !strings.HasPrefix(cmd.ConnectionString, "postgres://") &&
		!strings.HasPrefix(cmd.ConnectionString, "postgresql://") &&
		!strings.Contains(cmd.ConnectionString, "host=") {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}

	_, err := postgres.ValidateConnString(cmd.ConnectionString)
	if err != nil {
		if errors.Is(err, postgres.ErrEmbeddedCredentials) {
			// The keyring is encrypted, so a password is acceptable here
			fmt.Println("⚠️  Warning: Connection string contains embedded credentials.")
			fmt.Println("   It will be stored as-is in the encrypted OS keyring.")
		} else {
			return fmt.Errorf("invalid connection string: %w", err)
		}
	}

	if err := keyring.SetConnectionString(cmd.ConnectionString); err != nil {
		return fmt.Errorf("failed to store connection string in keyring: %w", err)
	}

	fmt.Println("✓ Connection string stored successfully in OS keyring")
	fmt.Println("  Cloud sync will use it when --cloud and GEKO_CLOUD_DSN are unset")
	return nil
}

type CloudGetCmd struct{}

func (cmd *CloudGetCmd) Run(ctx *cli.Context) error {
	connStr, err := keyring.GetConnectionString()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring. Use 'geko cloud set' to store one")
		}
		return fmt.Errorf("failed to retrieve connection string from keyring: %w", err)
	}

	fmt.Println("Connection string retrieved from keyring:")
	fmt.Println(maskPassword(connStr))
	return nil
}

type CloudDeleteCmd struct{}

func (cmd *CloudDeleteCmd) Run(ctx *cli.Context) error {
	err := keyring.DeleteConnectionString()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return fmt.Errorf("failed to delete connection string from keyring: %w", err)
	}

	fmt.Println("✓ Connection string deleted from OS keyring")
	return nil
}

// CloudStatusCmd reports where the connection string comes from and whether
// the database answers.
type CloudStatusCmd struct{}

func (cmd *CloudStatusCmd) Run(ctx *cli.Context) error {
	if keyring.IsAvailable() {
		fmt.Println("✓ OS keyring is available")
	} else {
		fmt.Println("ℹ OS keyring is not available on this system")
	}

	if !ctx.Config.Cloud.Enabled {
		fmt.Println("ℹ Cloud sync is disabled in config")
		return nil
	}

	_, source, err := cloud.ResolveDSN(ctx.CloudDSN)
	if errors.Is(err, cloud.ErrNotConfigured) {
		fmt.Println("ℹ No cloud database configured")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("✓ Connection string from %s\n", source)

	ch, err := ctx.CloudChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	reqCtx, cancel := context.WithTimeout(context.Background(), ctx.Config.SendTimeout())
	defer cancel()
	ok, err := ch.AccountStatus(reqCtx)
	if err != nil {
		fmt.Printf("❌ Cloud database unreachable: %v\n", err)
		return nil
	}
	if ok {
		fmt.Println("✓ Cloud database is reachable")
	}
	return nil
}

// CloudPushCmd runs one replication pass against the cloud database.
type CloudPushCmd struct{}

func (cmd *CloudPushCmd) Run(ctx *cli.Context) error {
	ch, err := ctx.CloudChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	runCtx, cancel := context.WithTimeout(context.Background(), ctx.Config.RefreshInterval())
	defer cancel()
	ok, err := ch.AccountStatus(runCtx)
	if err != nil {
		return fmt.Errorf("cloud database unreachable: %w", err)
	}
	if !ok {
		return errors.New("no cloud database configured. Use 'geko cloud set' or --cloud")
	}

	remote, err := ch.Remote()
	if err != nil {
		return err
	}
	res, err := cloud.NewReplicator(ctx.Store).SyncOnce(runCtx, remote)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Pushed %d, pulled %d habits\n", res.Pushed, res.Pulled)
	return nil
}

// maskPassword masks passwords in connection strings for display
func maskPassword(connStr string) string {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		if idx := strings.Index(connStr, "://"); idx != -1 {
			remaining := connStr[idx+3:]
			// The last @ separates user info from host
			if atIdx := strings.LastIndex(remaining, "@"); atIdx != -1 {
				userInfo := remaining[:atIdx]
				if colonIdx := strings.Index(userInfo, ":"); colonIdx != -1 {
					return connStr[:idx+3] + userInfo[:colonIdx] + ":****" + connStr[idx+3+atIdx:]
				}
			}
		}
	}

	if strings.Contains(connStr, "password=") {
		parts := strings.Fields(connStr)
		masked := make([]string, 0, len(parts))
		for _, part := range parts {
			if strings.HasPrefix(part, "password=") {
				masked = append(masked, "password=****")
			} else {
				masked = append(masked, part)
			}
		}
		return strings.Join(masked, " ")
	}

	return connStr
}

package system

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/geko/internal/cli"
	"github.com/julianstephens/geko/internal/cloud"
	"github.com/julianstephens/geko/internal/logger"
	"github.com/julianstephens/geko/internal/models"
	"github.com/julianstephens/geko/internal/peer"
	gekosync "github.com/julianstephens/geko/internal/sync"
	"github.com/julianstephens/geko/internal/watch"
)

type SyncCmd struct {
	Status SyncStatusCmd `cmd:"" help:"Show the sync status and what it means." default:"1"`
	Full   SyncFullCmd   `cmd:"" help:"Ask the paired device to resend all of its habits."`
	Serve  SyncServeCmd  `cmd:"" help:"Run the sync daemon for this device."`
}

type SyncStatusCmd struct {
	PeerDir string `help:"Directory holding the paired device's lockfile."`
}

func (c *SyncStatusCmd) Run(ctx *cli.Context) error {
	cloudCh, err := ctx.CloudChannel()
	if err != nil {
		return err
	}
	defer cloudCh.Close()

	var link *peer.Link
	if c.PeerDir != "" {
		link = peer.NewLink(peer.NewSecret())
		defer link.Close()
		dialCtx, cancel := context.WithTimeout(context.Background(), ctx.Config.SendTimeout())
		err := link.DialLockfile(dialCtx, c.PeerDir)
		cancel()
		if err != nil {
			logger.Debug("Peer not reachable", "dir", c.PeerDir, "error", err)
		}
	}

	ctx.Close()
	ctx.Wire(cloudCh, peerChannel(link))

	reqCtx, cancel := context.WithTimeout(context.Background(), ctx.Config.SendTimeout())
	defer cancel()
	status := ctx.Coordinator.Refresh(reqCtx)

	printStatus(status)
	return nil
}

func printStatus(status gekosync.Status) {
	fmt.Printf("Sync status: %s\n", cli.StatusStyle.Render(status.String()))
	fmt.Println(status.Description())
	for _, capability := range status.Capabilities() {
		fmt.Printf("  • %s\n", capability)
	}
}

// peerChannel keeps a nil *Link from becoming a non-nil interface.
func peerChannel(link *peer.Link) gekosync.PeerChannel {
	if link == nil {
		return nil
	}
	return link
}

type SyncFullCmd struct {
	PeerDir string        `help:"Directory holding the paired device's lockfile (default: peer.lockfile_dir from config)."`
	Wait    time.Duration `help:"How long to apply replies before exiting." default:"3s"`
}

func (c *SyncFullCmd) Run(ctx *cli.Context) error {
	dir := c.PeerDir
	if dir == "" {
		var err error
		if dir, err = ctx.Config.ResolveLockfileDir(ctx.ConfigDir); err != nil {
			return err
		}
	}

	link := peer.NewLink(peer.NewSecret())
	defer link.Close()
	ctx.Close()
	ctx.Wire(nil, link)

	reducer := gekosync.NewReducer(ctx.Store, link)
	reducer.Location = ctx.Location
	var applied atomic.Int64
	reducer.OnApplied = func(models.Habit, bool) { applied.Add(1) }
	link.OnReceive = reducer.Handle
	link.OnReachabilityChange = func(reachable bool) { ctx.Coordinator.SetPeerReachable(reachable) }

	dialCtx, cancel := context.WithTimeout(context.Background(), ctx.Config.SendTimeout())
	defer cancel()
	if err := link.DialLockfile(dialCtx, dir); err != nil {
		if errors.Is(err, peer.ErrNoPeer) {
			return fmt.Errorf("no paired device found in %s", dir)
		}
		return err
	}

	if !ctx.Coordinator.RequestFullSync() {
		return errors.New("peer link is not live")
	}
	fmt.Println("Requested full sync from the paired device...")

	time.Sleep(c.Wait)
	link.Close()
	ctx.Close()

	fmt.Printf("✓ Applied %d habit updates\n", applied.Load())
	return nil
}

type SyncServeCmd struct {
	Listen  string `help:"Address for the peer listener (default: peer.listen_addr from config)."`
	Connect string `help:"Lockfile directory of another device's daemon to connect to."`
}

func (c *SyncServeCmd) Run(ctx *cli.Context) error {
	lockDir, err := ctx.Config.ResolveLockfileDir(ctx.ConfigDir)
	if err != nil {
		return err
	}
	if c.Connect != "" && sameDir(c.Connect, lockDir) {
		return fmt.Errorf("--connect must point at another device's lockfile directory, not %s", lockDir)
	}
	listen := c.Listen
	if listen == "" {
		listen = ctx.Config.Peer.ListenAddr
	}

	cloudCh, err := ctx.CloudChannel()
	if err != nil {
		return err
	}
	defer cloudCh.Close()

	link := peer.NewLink(peer.NewSecret())
	ctx.Close()
	ctx.Wire(cloudCh, link)
	defer ctx.Close()
	coord := ctx.Coordinator

	announcer := gekosync.NewAnnouncer(ctx.Store, coord)
	if err := announcer.Prime(); err != nil {
		return err
	}
	reducer := gekosync.NewReducer(ctx.Store, link)
	reducer.Location = ctx.Location
	reducer.OnApplied = announcer.Remember
	link.OnReceive = reducer.Handle
	link.OnReachabilityChange = func(reachable bool) {
		coord.SetPeerReachable(reachable)
		if reachable {
			coord.RequestFullSync()
		}
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	watcher, err := watch.New(ctx.Store.GetConfigPath(), ctx.Config.Debounce(), func() {
		if _, err := announcer.Scan(gctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Failed to scan store for changes", "error", err)
		}
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listen, err)
	}
	lf := peer.Lockfile{
		Port:   ln.Addr().(*net.TCPAddr).Port,
		PID:    os.Getpid(),
		Secret: link.Secret(),
	}
	path, err := peer.WriteLockfile(lockDir, lf)
	if err != nil {
		ln.Close()
		return err
	}
	defer func() {
		if err := peer.RemoveLockfile(lockDir); err != nil {
			logger.Warn("Failed to remove lockfile", "error", err)
		}
	}()
	logger.Info("Sync daemon started", "addr", ln.Addr().String(), "lockfile", path)
	fmt.Printf("Listening for the paired device on %s (lockfile %s)\n", ln.Addr(), path)

	g.Go(func() error { return peer.Serve(gctx, ln, link) })
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error {
		return refreshLoop(gctx, ctx, cloudCh)
	})
	if c.Connect != "" {
		g.Go(func() error {
			return connectLoop(gctx, link, c.Connect, ctx.Config.RefreshInterval())
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("Sync daemon stopped.")
	return nil
}

// refreshLoop re-evaluates the status on every tick and, while the cloud is
// live, replicates with it.
func refreshLoop(ctx context.Context, app *cli.Context, cloudCh *cloud.Channel) error {
	replicator := cloud.NewReplicator(app.Store)
	lg := logger.With("loop", "cloud")
	tick := func() {
		status := app.Coordinator.Refresh(ctx)
		if !status.CloudLive() {
			return
		}
		remote, err := cloudCh.Remote()
		if err != nil {
			lg.Debug("Cloud store not open", "error", err)
			return
		}
		if _, err := replicator.SyncOnce(ctx, remote); err != nil && !errors.Is(err, context.Canceled) {
			lg.Warn("Cloud replication failed", "error", err)
		}
	}

	tick()
	ticker := time.NewTicker(app.Config.RefreshInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick()
		}
	}
}

// connectLoop keeps the link dialed to the daemon advertised in dir.
func connectLoop(ctx context.Context, link *peer.Link, dir string, interval time.Duration) error {
	lg := logger.With("loop", "connect", "dir", dir)
	dial := func() {
		if link.IsReachable() {
			return
		}
		dialCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		if err := link.DialLockfile(dialCtx, dir); err != nil {
			lg.Debug("Paired device not reachable", "error", err)
		}
	}

	dial()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			dial()
		}
	}
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

// Package sync decides how local habit mutations reach the other devices and
// applies the mutations they send back.
//
// Two remote channels exist. The cloud channel is an account database that
// local writes reach in the background; the peer channel is a direct
// low-latency link that is only live while both devices are running. The
// current Status is derived from their two availability signals and selects
// the fan-out policy for each mutation.
package sync

// Status is the combination of live remote channels.
type Status int

const (
	// Offline is the initial status before the first evaluation.
	Offline Status = iota
	// Hybrid means both the cloud and the peer are live.
	Hybrid
	// CloudOnly means the cloud is live and the peer is not.
	CloudOnly
	// PeerOnly means the peer is live and the cloud is not.
	PeerOnly
	// LocalOnly means neither remote channel is live; only the shared local
	// store carries state between processes.
	LocalOnly
)

// ComputeStatus maps the two availability signals to a status. It never
// returns Offline.
func ComputeStatus(cloudAvailable, peerReachable bool) Status {
	switch {
	case cloudAvailable && peerReachable:
		return Hybrid
	case cloudAvailable:
		return CloudOnly
	case peerReachable:
		return PeerOnly
	default:
		return LocalOnly
	}
}

func (s Status) String() string {
	switch s {
	case Offline:
		return "offline"
	case Hybrid:
		return "hybrid"
	case CloudOnly:
		return "cloud-only"
	case PeerOnly:
		return "peer-only"
	case LocalOnly:
		return "local-only"
	default:
		return "unknown"
	}
}

// PeerLive reports whether mutations are sent over the peer link.
func (s Status) PeerLive() bool {
	return s == Hybrid || s == PeerOnly
}

// CloudLive reports whether the cloud database is carrying local writes.
func (s Status) CloudLive() bool {
	return s == Hybrid || s == CloudOnly
}

// Description is a one-line summary for status displays.
func (s Status) Description() string {
	switch s {
	case Hybrid:
		return "✅ Syncing across all devices via the cloud, with instant updates to the paired device"
	case CloudOnly:
		return "✅ Syncing across all devices via the cloud"
	case PeerOnly:
		return "🔗 Syncing with the paired device while both are running"
	case LocalOnly:
		return "📱 Local only - changes are shared between processes on this device"
	default:
		return "❌ Offline - changes saved locally"
	}
}

// Capabilities lists what the status does and does not provide.
func (s Status) Capabilities() []string {
	switch s {
	case Hybrid:
		return []string{
			"✅ Cross-device sync via the cloud",
			"✅ Automatic background sync",
			"✅ Real-time sync with the paired device",
			"✅ Local sync between processes via the shared store",
		}
	case CloudOnly:
		return []string{
			"✅ Cross-device sync via the cloud",
			"✅ Automatic background sync",
			"✅ Local sync between processes via the shared store",
			"⚠️ No real-time sync (paired device not reachable)",
		}
	case PeerOnly:
		return []string{
			"🔗 Real-time sync with the paired device when both are running",
			"📱 Local sync between processes via the shared store",
			"⚠️ No cross-device sync (cloud unavailable)",
		}
	case LocalOnly:
		return []string{
			"📱 Local sync between processes via the shared store",
			"💾 All data stored locally",
			"⚠️ No cross-device sync (cloud unavailable)",
			"⚠️ No real-time sync (paired device not reachable)",
		}
	default:
		return []string{
			"❌ Limited functionality",
			"💾 Changes saved locally only",
		}
	}
}

package daemon

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"blackbox/internal/config"
	"blackbox/internal/logging"
)

// netlinkMonitor kicks a camera's start retry as soon as udev reports its
// video node, so a replugged camera does not sit out a full backoff.
type netlinkMonitor struct {
	logger  *slog.Logger
	kick    func(cameraID int) bool
	kickAll func()
	devices map[string]int

	mu     sync.Mutex
	conn   *netlink.UEventConn
	cancel context.CancelFunc
	done   chan struct{}
}

// newNetlinkMonitor returns nil when no cameras are configured.
func newNetlinkMonitor(cfg *config.Config, logger *slog.Logger, kick func(int) bool, kickAll func()) *netlinkMonitor {
	if cfg == nil || len(cfg.Cameras.IDs) == 0 {
		return nil
	}
	devices := make(map[string]int, len(cfg.Cameras.IDs))
	for _, id := range cfg.Cameras.IDs {
		devices[cfg.DevicePath(id)] = id
	}
	return &netlinkMonitor{
		logger:  logging.NewComponentLogger(logger, "netlink-monitor"),
		kick:    kick,
		kickAll: kickAll,
		devices: devices,
	}
}

// Start connects to the udev netlink group. A refused connection is logged
// and leaves the monitor idle; cameras then fall back to timed retries.
func (m *netlinkMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "netlink socket unavailable", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "grant the daemon access to NETLINK_KOBJECT_UEVENT"),
			logging.String(logging.FieldImpact, "replugged cameras wait for the next retry"),
		)
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.conn = conn
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(loopCtx, conn, m.done)

	m.logger.Info("netlink monitor started",
		logging.Int("devices", len(m.devices)),
		logging.String(logging.FieldEventType, "netlink_monitor_started"),
	)
	return nil
}

// Stop cancels the event loop and closes the socket. Safe to call repeatedly.
func (m *netlinkMonitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	conn, cancel, done := m.conn, m.cancel, m.done
	m.conn, m.cancel, m.done = nil, nil, nil
	m.mu.Unlock()
	if conn == nil {
		return
	}

	cancel()
	<-done
	_ = conn.Close()
	m.logger.Info("netlink monitor stopped",
		logging.String(logging.FieldEventType, "netlink_monitor_stopped"),
	)
}

// Running reports whether the monitor holds an open netlink socket.
func (m *netlinkMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

func (m *netlinkMonitor) run(ctx context.Context, conn *netlink.UEventConn, done chan<- struct{}) {
	defer close(done)

	uevents := make(chan netlink.UEvent)
	errs := make(chan error)
	stop := conn.Monitor(uevents, errs, m.buildMatcher())
	defer close(stop)

	for {
		select {
		case <-ctx.Done():
			return
		case uevent := <-uevents:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Debug("netlink read error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
			)
		}
	}
}

// buildMatcher accepts video4linux add and change events.
func (m *netlinkMonitor) buildMatcher() netlink.Matcher {
	action := "add|change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env:    map[string]string{"SUBSYSTEM": "video4linux"},
	})
	return rules
}

// handleEvent kicks the camera owning the node. An unmapped node kicks every
// camera because rpicam addresses sensors by index, not by device path.
func (m *netlinkMonitor) handleEvent(uevent netlink.UEvent) {
	node := deviceNode(uevent.Env)
	if node == "" {
		return
	}

	id, mapped := m.devices[node]
	if !mapped {
		m.logger.Debug("unmapped video node appeared",
			logging.String("device", node),
			logging.String("action", string(uevent.Action)),
		)
		if m.kickAll != nil {
			m.kickAll()
		}
		return
	}

	m.logger.Info("camera device appeared",
		logging.CameraID(id),
		logging.String("device", node),
		logging.String("action", string(uevent.Action)),
		logging.String(logging.FieldEventType, "netlink_camera_detected"),
	)
	if m.kick != nil {
		m.kick(id)
	}
}

// deviceNode resolves the /dev path from DEVNAME, falling back to the last
// DEVPATH element.
func deviceNode(env map[string]string) string {
	name := strings.TrimSpace(env["DEVNAME"])
	if name == "" {
		devpath := strings.TrimSpace(env["DEVPATH"])
		if devpath == "" {
			return ""
		}
		name = path.Base(devpath)
	}
	if strings.HasPrefix(name, "/") {
		return name
	}
	return path.Join("/dev", name)
}

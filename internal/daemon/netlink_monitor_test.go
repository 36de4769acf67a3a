package daemon

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"blackbox/internal/config"
)

type kickRecorder struct {
	ids []int
	all int
}

func (k *kickRecorder) kick(id int) bool {
	k.ids = append(k.ids, id)
	return true
}

func (k *kickRecorder) kickAll() { k.all++ }

func monitorConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Cameras.IDs = []int{0, 1}
	cfg.Cameras.Devices = map[string]string{"1": "/dev/video4"}
	return cfg
}

func TestNewNetlinkMonitor(t *testing.T) {
	t.Run("nil config returns nil", func(t *testing.T) {
		if m := newNetlinkMonitor(nil, nil, nil, nil); m != nil {
			t.Error("expected nil monitor for nil config")
		}
	})

	t.Run("no cameras returns nil", func(t *testing.T) {
		if m := newNetlinkMonitor(&config.Config{}, nil, nil, nil); m != nil {
			t.Error("expected nil monitor without cameras")
		}
	})

	t.Run("maps devices to camera ids", func(t *testing.T) {
		m := newNetlinkMonitor(monitorConfig(), nil, nil, nil)
		if m == nil {
			t.Fatal("expected non-nil monitor")
		}
		if m.devices["/dev/video0"] != 0 || m.devices["/dev/video4"] != 1 {
			t.Errorf("unexpected device map %v", m.devices)
		}
	})
}

func TestNetlinkMonitorStopStartIdempotency(t *testing.T) {
	t.Run("nil monitor is safe", func(t *testing.T) {
		var m *netlinkMonitor
		m.Stop()
		if m.Running() {
			t.Error("nil monitor reports running")
		}
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("Start on nil monitor should return nil, got: %v", err)
		}
	})

	t.Run("double stop on unstarted monitor is safe", func(t *testing.T) {
		m := newNetlinkMonitor(monitorConfig(), nil, nil, nil)
		m.Stop()
		m.Stop()
		if m.Running() {
			t.Error("expected Running() to return false after Stop on unstarted monitor")
		}
	})
}

func TestBuildMatcher(t *testing.T) {
	m := newNetlinkMonitor(monitorConfig(), nil, nil, nil)
	matcher := m.buildMatcher()
	if matcher == nil {
		t.Fatal("expected non-nil matcher")
	}

	add := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "video4linux"}}
	if !matcher.Evaluate(add) {
		t.Error("expected matcher to accept video4linux add")
	}
	change := netlink.UEvent{Action: netlink.CHANGE, Env: map[string]string{"SUBSYSTEM": "video4linux"}}
	if !matcher.Evaluate(change) {
		t.Error("expected matcher to accept video4linux change")
	}
	remove := netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "video4linux"}}
	if matcher.Evaluate(remove) {
		t.Error("expected matcher to reject REMOVE action")
	}
	block := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}}
	if matcher.Evaluate(block) {
		t.Error("expected matcher to reject block devices")
	}
}

func TestHandleEvent(t *testing.T) {
	t.Run("ignores event without device name", func(t *testing.T) {
		k := &kickRecorder{}
		m := newNetlinkMonitor(monitorConfig(), nil, k.kick, k.kickAll)
		m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{}})
		if len(k.ids) != 0 || k.all != 0 {
			t.Errorf("unexpected kicks %+v", k)
		}
	})

	t.Run("kicks mapped camera", func(t *testing.T) {
		k := &kickRecorder{}
		m := newNetlinkMonitor(monitorConfig(), nil, k.kick, k.kickAll)
		m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": "/dev/video4"}})
		if len(k.ids) != 1 || k.ids[0] != 1 || k.all != 0 {
			t.Errorf("expected camera 1 kicked, got %+v", k)
		}
	})

	t.Run("relative DEVNAME resolves under /dev", func(t *testing.T) {
		k := &kickRecorder{}
		m := newNetlinkMonitor(monitorConfig(), nil, k.kick, k.kickAll)
		m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": "video0"}})
		if len(k.ids) != 1 || k.ids[0] != 0 {
			t.Errorf("expected camera 0 kicked, got %+v", k)
		}
	})

	t.Run("extracts device from DEVPATH", func(t *testing.T) {
		k := &kickRecorder{}
		m := newNetlinkMonitor(monitorConfig(), nil, k.kick, k.kickAll)
		m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{
			"DEVPATH": "/devices/platform/soc/fe801000.csi/video4linux/video0",
		}})
		if len(k.ids) != 1 || k.ids[0] != 0 {
			t.Errorf("expected camera 0 kicked, got %+v", k)
		}
	})

	t.Run("unmapped device kicks all cameras", func(t *testing.T) {
		k := &kickRecorder{}
		m := newNetlinkMonitor(monitorConfig(), nil, k.kick, k.kickAll)
		m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": "/dev/video19"}})
		if len(k.ids) != 0 || k.all != 1 {
			t.Errorf("expected kick all, got %+v", k)
		}
	})
}

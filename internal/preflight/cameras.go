package preflight

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"blackbox/internal/config"
	"blackbox/internal/services/rpicam"
)

// CameraProbe is one camera reported by rpicam-vid --list-cameras.
type CameraProbe struct {
	Index  int    `json:"index"`
	Sensor string `json:"sensor"`
	Mode   string `json:"mode,omitempty"`
}

var cameraLine = regexp.MustCompile(`^\s*(\d+)\s*:\s*(\S+)\s*(?:\[([^\]]*)\])?`)

// ProbeCameras lists the cameras libcamera can see.
func ProbeCameras(ctx context.Context, binary string) ([]CameraProbe, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "rpicam-vid"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("binary %q not found", binary)
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// rpicam-vid prints the list on stderr on some releases.
	output, err := exec.CommandContext(probeCtx, binary, "--list-cameras").CombinedOutput() //nolint:gosec
	if err != nil && len(output) == 0 {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	return parseCameraList(string(output)), nil
}

func parseCameraList(output string) []CameraProbe {
	var cameras []CameraProbe
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		m := cameraLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		cameras = append(cameras, CameraProbe{Index: idx, Sensor: m[2], Mode: strings.TrimSpace(m[3])})
	}
	return cameras
}

// CheckCameras reports one result per configured camera. The rpicam backend
// is checked against --list-cameras; the ffmpeg backend checks the V4L2
// device node.
func CheckCameras(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := make([]Result, 0, len(cfg.Cameras.IDs))
	if cfg.Cameras.Backend == rpicam.BackendFFmpeg {
		for _, id := range cfg.Cameras.IDs {
			dev := cfg.DevicePath(id)
			name := fmt.Sprintf("Camera %d", id)
			if _, err := os.Stat(dev); err != nil {
				results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", dev, err)})
				continue
			}
			results = append(results, Result{Name: name, Passed: true, Detail: dev})
		}
		return results
	}

	probes, err := ProbeCameras(ctx, cfg.Cameras.Binary)
	return matchCameras(cfg.Cameras.IDs, probes, err)
}

func matchCameras(ids []int, probes []CameraProbe, probeErr error) []Result {
	byIndex := make(map[int]CameraProbe, len(probes))
	for _, p := range probes {
		byIndex[p.Index] = p
	}
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		name := fmt.Sprintf("Camera %d", id)
		if probeErr != nil {
			results = append(results, Result{Name: name, Detail: probeErr.Error()})
			continue
		}
		p, ok := byIndex[id]
		if !ok {
			results = append(results, Result{Name: name, Detail: "not detected by libcamera"})
			continue
		}
		detail := p.Sensor
		if p.Mode != "" {
			detail += " [" + p.Mode + "]"
		}
		results = append(results, Result{Name: name, Passed: true, Detail: detail})
	}
	return results
}

// Package mixer reads and writes the system output volume through whichever
// command-line mixer utility the host provides.
package mixer

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/genricoloni/mediad/internal/bus"
)

// tool describes one supported mixer utility
type tool struct {
	name string
	// get returns the argv for reading the volume
	get []string
	// set returns the argv for writing percent, always un-muting so a
	// volume raised from zero is audible
	set func(percent int) [][]string
	// parse extracts a 0-100 volume from the get output
	parse func(out string) (int, error)
}

// Ordered list of mixer utilities to try, highest priority first
var tools = []tool{
	{
		name: "wpctl",
		get:  []string{"get-volume", "@DEFAULT_AUDIO_SINK@"},
		set: func(percent int) [][]string {
			return [][]string{
				{"set-mute", "@DEFAULT_AUDIO_SINK@", "0"},
				{"set-volume", "@DEFAULT_AUDIO_SINK@", fmt.Sprintf("%.2f", float64(percent)/100)},
			}
		},
		parse: parseWpctl,
	},
	{
		name: "pactl",
		get:  []string{"get-sink-volume", "@DEFAULT_SINK@"},
		set: func(percent int) [][]string {
			return [][]string{
				{"set-sink-mute", "@DEFAULT_SINK@", "0"},
				{"set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", percent)},
			}
		},
		parse: parsePercent,
	},
	{
		name: "amixer",
		get:  []string{"get", "Master"},
		set: func(percent int) [][]string {
			// Single invocation with the explicit unmute token
			return [][]string{{"set", "Master", fmt.Sprintf("%d%%", percent), "unmute"}}
		},
		parse: parsePercent,
	},
}

var (
	wpctlVolumeRe = regexp.MustCompile(`Volume:\s*([0-9.]+)`)
	percentRe     = regexp.MustCompile(`(\d+)%`)
)

func parseWpctl(out string) (int, error) {
	m := wpctlVolumeRe.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("unparseable wpctl output: %q", out)
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, err
	}
	return clamp(int(f*100 + 0.5)), nil
}

func parsePercent(out string) (int, error) {
	m := percentRe.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("no percentage in mixer output: %q", out)
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, err
	}
	return clamp(v), nil
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// CLIMixer drives the detected mixer utility through the command runner
type CLIMixer struct {
	logger *zap.Logger
	runner bus.Runner
	tool   tool
}

// NewCLIMixer detects the mixer utility and returns a mixer bound to it.
// forced selects a specific tool by name; "auto" probes the PATH in
// priority order.
func NewCLIMixer(logger *zap.Logger, runner bus.Runner, forced string) (*CLIMixer, error) {
	t, err := detectTool(forced)
	if err != nil {
		return nil, err
	}

	logger.Info("Mixer utility detected", zap.String("tool", t.name))
	return &CLIMixer{logger: logger, runner: runner, tool: t}, nil
}

func detectTool(forced string) (tool, error) {
	for _, t := range tools {
		if forced != "auto" && forced != "" {
			if t.name == forced {
				return t, nil
			}
			continue
		}
		if _, err := exec.LookPath(t.name); err == nil {
			return t, nil
		}
	}
	return tool{}, fmt.Errorf("no supported mixer utility found (tried wpctl, pactl, amixer)")
}

// Volume reads the current system volume as 0-100
func (m *CLIMixer) Volume(ctx context.Context) (int, error) {
	out, err := m.runner.Run(ctx, m.tool.name, m.tool.get...)
	if err != nil {
		return 0, err
	}
	return m.tool.parse(out)
}

// SetVolume clamps percent to 0-100 and writes it, always un-muting the
// sink first so "volume 0 then volume up" behaves as users expect.
func (m *CLIMixer) SetVolume(ctx context.Context, percent int) error {
	percent = clamp(percent)
	for _, args := range m.tool.set(percent) {
		if _, err := m.runner.Run(ctx, m.tool.name, args...); err != nil {
			return fmt.Errorf("mixer set %d%%: %w", percent, err)
		}
	}
	m.logger.Debug("System volume set", zap.Int("percent", percent))
	return nil
}

// Unavailable is the mixer used when no utility was found on the host.
// Every call fails, which callers already treat as "no data".
type Unavailable struct{}

// Volume always fails
func (Unavailable) Volume(context.Context) (int, error) {
	return 0, fmt.Errorf("no mixer utility available")
}

// SetVolume always fails
func (Unavailable) SetVolume(context.Context, int) error {
	return fmt.Errorf("no mixer utility available")
}

// Package notifier shows desktop notifications when a build finishes
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/arewefastyet/jsbuild/pkg/logger"
)

// Sender delivers one notification
type Sender func(title, message string) error

// BuildNotifier handles build notifications
type BuildNotifier struct {
	enabled bool
	beep    bool
	send    Sender
	logger  logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled bool
	// BeepOnFailure sounds the system bell when a build fails
	BeepOnFailure bool
}

// New creates a notifier delivering through beeep
func New(config Config, log logger.Logger) *BuildNotifier {
	return NewWithSender(config, log, func(title, message string) error {
		return beeep.Notify(title, message, "")
	})
}

// NewWithSender creates a notifier delivering through send
func NewWithSender(config Config, log logger.Logger, send Sender) *BuildNotifier {
	if log == nil {
		log = logger.Discard()
	}
	return &BuildNotifier{
		enabled: config.Enabled,
		beep:    config.BeepOnFailure,
		send:    send,
		logger:  log.WithComponent("notifier"),
	}
}

// NotifyBuildStart notifies that a build has started
func (n *BuildNotifier) NotifyBuildStart(target string) {
	if !n.enabled {
		return
	}
	n.notify("jsbuild", fmt.Sprintf("Building %s...", target))
}

// NotifyBuildSuccess notifies that a build succeeded
func (n *BuildNotifier) NotifyBuildSuccess(target string, duration time.Duration) {
	if !n.enabled {
		return
	}
	n.notify("Build Succeeded", fmt.Sprintf("%s built in %s", target, formatDuration(duration)))
}

// NotifyBuildFailure notifies that a build failed
func (n *BuildNotifier) NotifyBuildFailure(target string, err error) {
	if !n.enabled {
		return
	}
	n.notify("Build Failed", fmt.Sprintf("%s: %v", target, err))

	if n.beep {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

// notification failures never fail a build
func (n *BuildNotifier) notify(title, message string) {
	if err := n.send(title, message); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

package notifier_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arewefastyet/jsbuild/pkg/notifier"
)

type sent struct {
	title, message string
}

func recorder(out *[]sent, err error) notifier.Sender {
	return func(title, message string) error {
		*out = append(*out, sent{title, message})
		return err
	}
}

func TestNotifier_Disabled(t *testing.T) {
	var got []sent
	n := notifier.NewWithSender(notifier.Config{}, nil, recorder(&got, nil))

	n.NotifyBuildStart("mozilla")
	n.NotifyBuildSuccess("mozilla", time.Second)
	n.NotifyBuildFailure("mozilla", errors.New("boom"))

	if len(got) != 0 {
		t.Errorf("disabled notifier sent %v", got)
	}
}

func TestNotifier_Messages(t *testing.T) {
	tests := []struct {
		name    string
		notify  func(*notifier.BuildNotifier)
		title   string
		message string
	}{
		{
			name:    "start",
			notify:  func(n *notifier.BuildNotifier) { n.NotifyBuildStart("v8") },
			title:   "jsbuild",
			message: "Building v8...",
		},
		{
			name:    "sub-second success",
			notify:  func(n *notifier.BuildNotifier) { n.NotifyBuildSuccess("servo", 250*time.Millisecond) },
			title:   "Build Succeeded",
			message: "servo built in 250ms",
		},
		{
			name:    "seconds",
			notify:  func(n *notifier.BuildNotifier) { n.NotifyBuildSuccess("servo", 1500*time.Millisecond) },
			message: "servo built in 1.5s",
		},
		{
			name:    "minutes",
			notify:  func(n *notifier.BuildNotifier) { n.NotifyBuildSuccess("mozilla", 125*time.Second) },
			message: "mozilla built in 2m5s",
		},
		{
			name:    "hours",
			notify:  func(n *notifier.BuildNotifier) { n.NotifyBuildSuccess("webkit", 90*time.Minute) },
			message: "webkit built in 1h30m",
		},
		{
			name:    "failure",
			notify:  func(n *notifier.BuildNotifier) { n.NotifyBuildFailure("webkit", errors.New("build failed")) },
			title:   "Build Failed",
			message: "webkit: build failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []sent
			n := notifier.NewWithSender(notifier.Config{Enabled: true}, nil, recorder(&got, nil))
			tt.notify(n)

			if len(got) != 1 {
				t.Fatalf("expected one notification, got %v", got)
			}
			if tt.title != "" && got[0].title != tt.title {
				t.Errorf("title = %q, want %q", got[0].title, tt.title)
			}
			if !strings.Contains(got[0].message, tt.message) {
				t.Errorf("message = %q, want %q", got[0].message, tt.message)
			}
		})
	}
}

func TestNotifier_SendErrorIsIgnored(t *testing.T) {
	var got []sent
	n := notifier.NewWithSender(notifier.Config{Enabled: true}, nil, recorder(&got, errors.New("no dbus")))

	n.NotifyBuildSuccess("mozilla", time.Minute)
	if len(got) != 1 {
		t.Errorf("expected the notification to be attempted, got %v", got)
	}
}

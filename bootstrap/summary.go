package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/recpipe/component"
)

// ServiceInfo is one line of the startup summary.
type ServiceInfo struct {
	Name    string
	Type    string
	Details string
}

// Summary tracks and displays the application bootstrap.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	extra           []ServiceInfo
}

// NewSummary creates a bootstrap summary tracker.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Track adds a line for something that is not a managed service, such as
// the loaded pipeline.
func (s *Summary) Track(name, kind, details string) {
	s.extra = append(s.extra, ServiceInfo{Name: name, Type: kind, Details: details})
}

// Services lists managed services, using Describe when available, followed
// by tracked lines.
func (s *Summary) Services(mgr *component.Manager) []ServiceInfo {
	var out []ServiceInfo
	if mgr != nil {
		for _, svc := range mgr.All() {
			info := ServiceInfo{Name: svc.Name()}
			if d, ok := svc.(component.Describable); ok {
				desc := d.Describe()
				if desc.Name != "" {
					info.Name = desc.Name
				}
				info.Type = desc.Type
				info.Details = desc.Details
			}
			out = append(out, info)
		}
	}
	return append(out, s.extra...)
}

// Display writes the summary and a live health check to w.
func (s *Summary) Display(w io.Writer, mgr *component.Manager) {
	fmt.Fprintf(w, "\n%s %s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	services := s.Services(mgr)
	if len(services) == 0 {
		fmt.Fprintf(w, "   └── no services registered\n\n")
		return
	}
	for i, info := range services {
		line := info.Name
		if info.Type != "" {
			line += " [" + info.Type + "]"
		}
		if info.Details != "" {
			line += ": " + info.Details
		}
		fmt.Fprintf(w, "   %s %s\n", treePrefix(i, len(services)), line)
	}

	if mgr == nil {
		fmt.Fprintln(w)
		return
	}
	health := mgr.HealthAll(context.Background())
	if len(health) == 0 {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "\nhealth\n")
	for i, h := range health {
		msg := ""
		if h.Message != "" {
			msg = " (" + h.Message + ")"
		}
		fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(health)), healthIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
	}
	fmt.Fprintln(w)
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}

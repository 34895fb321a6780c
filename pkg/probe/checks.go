package probe

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"dronesim/pkg/config"
	"dronesim/pkg/db"
)

// Database verifies the flight log can be written.
func Database(d *db.DB) Probe {
	return Probe{
		Name:     "Flight log database",
		Critical: true,
		Check: func(ctx context.Context) error {
			if err := d.PingContext(ctx); err != nil {
				return err
			}
			var result string
			if err := d.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
				return err
			}
			if result != "ok" {
				return fmt.Errorf("integrity check: %s", result)
			}
			return nil
		},
	}
}

// ListenAddress verifies the local API address is free.
func ListenAddress(addr string) Probe {
	return Probe{
		Name:     "API listen address",
		Critical: true,
		Check: func(ctx context.Context) error {
			var lc net.ListenConfig
			l, err := lc.Listen(ctx, "tcp", addr)
			if err != nil {
				return err
			}
			return l.Close()
		},
	}
}

// ControlPlane dials the control plane host. Failure only warns: the link
// retries on its own and the simulator runs standalone meanwhile.
func ControlPlane(rawURL string) Probe {
	return Probe{
		Name: "Control plane",
		Check: func(ctx context.Context) error {
			host, err := dialTarget(rawURL)
			if err != nil {
				return err
			}
			var d net.Dialer
			conn, err := d.DialContext(ctx, "tcp", host)
			if err != nil {
				return err
			}
			return conn.Close()
		},
	}
}

func dialTarget(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid link url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid link url %q: missing host", rawURL)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	switch u.Scheme {
	case "ws", "http":
		return net.JoinHostPort(u.Hostname(), "80"), nil
	case "wss", "https":
		return net.JoinHostPort(u.Hostname(), "443"), nil
	default:
		return "", fmt.Errorf("unsupported link scheme %q", u.Scheme)
	}
}

// Startup returns the probes for the given configuration. d may be nil when
// the flight recorder is disabled.
func Startup(cfg *config.Config, d *db.DB) []Probe {
	var probes []Probe
	if d != nil {
		probes = append(probes, Database(d))
	}
	if cfg.Server.Address != "" {
		probes = append(probes, ListenAddress(cfg.Server.Address))
	}
	if cfg.Link.URL != "" {
		probes = append(probes, ControlPlane(cfg.Link.URL))
	}
	return probes
}

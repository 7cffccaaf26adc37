// Package enforce proxies enforcement decisions to the external
// rule-enforcement service over D-Bus. The daemon never blocks traffic
// itself; it only tells this collaborator what the current policy is.
package enforce

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/SoarinFerret/SiteWarden/internal/site"
)

const (
	ServiceName   = "io.github.soarinferret.siteblockd"
	ObjectPath    = "/io/github/soarinferret/siteblockd"
	InterfaceName = "io.github.soarinferret.siteblockd.Rules"
)

// DBus implements gate.Enforcer against the siteblockd D-Bus service.
type DBus struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

func NewDBus() (*DBus, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	return &DBus{conn: conn, obj: conn.Object(ServiceName, ObjectPath)}, nil
}

// NewDBusWithConn wraps an existing connection (shared with the IPC
// service in the daemon).
func NewDBusWithConn(conn *dbus.Conn) *DBus {
	return &DBus{conn: conn, obj: conn.Object(ServiceName, ObjectPath)}
}

func (d *DBus) Close() error { return d.conn.Close() }

func (d *DBus) SetEnabledForAllSites(ctx context.Context, enabled bool) error {
	call := d.obj.CallWithContext(ctx, InterfaceName+".SetEnabledForAll", 0, enabled)
	if call.Err != nil {
		return fmt.Errorf("SetEnabledForAll failed: %w", call.Err)
	}
	return nil
}

func (d *DBus) SetConsumerOverride(ctx context.Context, consumerID, siteID string, allow bool) error {
	call := d.obj.CallWithContext(ctx, InterfaceName+".SetConsumerOverride", 0, consumerID, siteID, allow)
	if call.Err != nil {
		return fmt.Errorf("SetConsumerOverride failed: %w", call.Err)
	}
	return nil
}

func (d *DBus) ListSites(ctx context.Context) ([]string, error) {
	var ids []string
	call := d.obj.CallWithContext(ctx, InterfaceName+".ListSites", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("ListSites failed: %w", call.Err)
	}
	if err := call.Store(&ids); err != nil {
		return nil, fmt.Errorf("failed to parse ListSites reply: %w", err)
	}
	return ids, nil
}

// SyncSites pushes the current match conditions so the enforcement
// layer knows both the inclusion patterns and the exception carve-outs.
// Called whenever the blocked-site list changes.
func (d *DBus) SyncSites(ctx context.Context, sites []site.Site) error {
	rules := make(map[string]site.MatchCondition, len(sites))
	for _, s := range sites {
		if !s.Enabled {
			continue
		}
		rules[s.ID] = s.MatchCondition()
	}
	payload, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	call := d.obj.CallWithContext(ctx, InterfaceName+".SyncRules", 0, string(payload))
	if call.Err != nil {
		return fmt.Errorf("SyncRules failed: %w", call.Err)
	}
	return nil
}

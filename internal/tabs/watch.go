// Package tabs watches consumer (browser tab) lifecycle signals and
// feeds them to the gate so sessions end when their consumer goes away.
package tabs

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"

	"github.com/SoarinFerret/SiteWarden/internal/gate"
)

const (
	objectPath    = "/io/github/soarinferret/siteblockd"
	interfaceName = "io.github.soarinferret.siteblockd.Tabs"

	signalClosed    = interfaceName + ".ConsumerClosed"
	signalNavigated = interfaceName + ".ConsumerNavigated"
)

// Watch subscribes to tab lifecycle signals on the system bus and ends
// budget sessions accordingly. Blocks until ctx is cancelled.
func Watch(ctx context.Context, g *gate.Gate) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer conn.Close()

	for _, member := range []string{"ConsumerClosed", "ConsumerNavigated"} {
		if err := conn.AddMatchSignal(
			dbus.WithMatchObjectPath(objectPath),
			dbus.WithMatchInterface(interfaceName),
			dbus.WithMatchMember(member),
		); err != nil {
			return fmt.Errorf("add match failed: %w", err)
		}
	}

	c := make(chan *dbus.Signal, 10)
	conn.Signal(c)

	for {
		select {
		case sig := <-c:
			consumerID, ok := consumerFrom(sig)
			if !ok {
				log.Warn().Str("signal", sig.Name).Msg("malformed tab signal")
				continue
			}
			switch sig.Name {
			case signalClosed:
				log.Debug().Str("consumer", consumerID).Msg("consumer closed")
				g.HandleConsumerClosed(ctx, consumerID)
			case signalNavigated:
				log.Debug().Str("consumer", consumerID).Msg("consumer navigated away")
				g.HandleConsumerNavigated(ctx, consumerID)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func consumerFrom(sig *dbus.Signal) (string, bool) {
	if len(sig.Body) < 1 {
		return "", false
	}
	id, ok := sig.Body[0].(string)
	return id, ok
}

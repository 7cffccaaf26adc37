package arg

import (
	"fmt"
	"log"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SoarinFerret/SiteWarden/internal/ipc"
)

var rootCmd = &cobra.Command{
	Use:   "siwctl",
	Short: "siwctl is the command line tool for SiteWarden",
	Long: `siwctl talks to the SiteWarden daemon over D-Bus.
			You can use it to query status, pause and resume blocking,
			and manage schedules, sites and the daily time budget.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("session-bus", false, "talk to the daemon on the session bus instead of the system bus")
	viper.SetEnvPrefix("SIWCTL")
	viper.AutomaticEnv()
	if err := viper.BindPFlag("session_bus", rootCmd.PersistentFlags().Lookup("session-bus")); err != nil {
		log.Fatal("failed to bind flags:", err)
	}
}

// warden connects to the daemon's control object. Callers own closing
// the returned connection.
func warden() (*dbus.Conn, dbus.BusObject) {
	var conn *dbus.Conn
	var err error
	if viper.GetBool("session_bus") {
		conn, err = dbus.ConnectSessionBus()
	} else {
		conn, err = dbus.ConnectSystemBus()
	}
	if err != nil {
		log.Fatal("Failed to connect to bus:", err)
	}
	return conn, conn.Object(ipc.ServiceName, dbus.ObjectPath(ipc.ObjectPath))
}

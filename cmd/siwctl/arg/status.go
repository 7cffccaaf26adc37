package arg

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/SiteWarden/internal/ipc"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"s"},
	Short:   "Show the daemon's current blocking and budget state",
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj := warden()
		defer conn.Close()

		var payload string
		if err := obj.Call(ipc.InterfaceName+".GetStatus", 0).Store(&payload); err != nil {
			log.Fatal("Failed to call method:", err)
		}

		var status ipc.Status
		if err := json.Unmarshal([]byte(payload), &status); err != nil {
			log.Fatal("Failed to parse status:", err)
		}

		verdict := "allowing"
		if status.Denying {
			verdict = "blocking"
		}
		fmt.Printf("State:    %s\n", verdict)
		if status.ActiveScheduleID != "" {
			fmt.Printf("Schedule: %s\n", status.ActiveScheduleID)
		} else {
			fmt.Println("Schedule: none (always blocking)")
		}
		if status.PausedUntil != "" {
			fmt.Printf("Paused:   until %s\n", status.PausedUntil)
		}
		fmt.Printf("Budget:   %.1f of %.1f minutes left\n",
			status.Budget.RemainingMinutes, status.Budget.TotalMinutes)
		for _, s := range status.Sessions {
			fmt.Printf("Session:  %s on %s (%.1f min used)\n", s.ConsumerID, s.SiteID, s.MinutesConsumed)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

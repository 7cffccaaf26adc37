package arg

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/SiteWarden/internal/budget"
	"github.com/SoarinFerret/SiteWarden/internal/ipc"
)

var budgetCmd = &cobra.Command{
	Use:     "budget",
	Aliases: []string{"b"},
	Short:   "Query the daily time budget",
}

var budgetRemainingCmd = &cobra.Command{
	Use:   "remaining",
	Short: "Show how much of today's budget is left",
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj := warden()
		defer conn.Close()

		var payload string
		if err := obj.Call(ipc.InterfaceName+".GetBudgetRemaining", 0).Store(&payload); err != nil {
			log.Fatal("Failed to call method:", err)
		}

		var rem budget.Remaining
		if err := json.Unmarshal([]byte(payload), &rem); err != nil {
			log.Fatal("Failed to parse budget:", err)
		}
		fmt.Printf("%.1f of %.1f minutes remaining (%.1f used)\n",
			rem.GlobalRemaining, rem.Total, rem.UsedToday)
	},
}

var budgetHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived daily budgets",
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj := warden()
		defer conn.Close()

		var payload string
		if err := obj.Call(ipc.InterfaceName+".GetBudgetHistory", 0).Store(&payload); err != nil {
			log.Fatal("Failed to call method:", err)
		}

		var history []budget.DayRecord
		if err := json.Unmarshal([]byte(payload), &history); err != nil {
			log.Fatal("Failed to parse history:", err)
		}
		if len(history) == 0 {
			fmt.Println("No archived days")
			return
		}
		for _, day := range history {
			fmt.Printf("%s  %.1f minute(s) used\n", day.Date, day.UsedMinutes)
		}
	},
}

var budgetAccessCmd = &cobra.Command{
	Use:   "access <consumer-id> <site-id>",
	Short: "Request a metered access session for a consumer",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj := warden()
		defer conn.Close()

		if err := obj.Call(ipc.InterfaceName+".RequestAccess", 0, args[0], args[1]).Store(); err != nil {
			log.Fatal("Failed to call method:", err)
		}
		fmt.Printf("Access granted to %s for consumer %s\n", args[1], args[0])
	},
}

var budgetEndCmd = &cobra.Command{
	Use:   "end <consumer-id>",
	Short: "End a consumer's metered access session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj := warden()
		defer conn.Close()

		if err := obj.Call(ipc.InterfaceName+".EndAccess", 0, args[0]).Store(); err != nil {
			log.Fatal("Failed to call method:", err)
		}
		fmt.Println("Session ended for consumer:", args[0])
	},
}

func init() {
	budgetCmd.AddCommand(budgetRemainingCmd, budgetHistoryCmd, budgetAccessCmd, budgetEndCmd)
	rootCmd.AddCommand(budgetCmd)
}

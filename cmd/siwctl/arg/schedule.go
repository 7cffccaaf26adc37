package arg

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/SiteWarden/internal/ipc"
	"github.com/SoarinFerret/SiteWarden/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Aliases: []string{"sched"},
	Short:   "Manage weekly blocking schedules",
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj := warden()
		defer conn.Close()

		var payload string
		if err := obj.Call(ipc.InterfaceName+".ListSchedules", 0).Store(&payload); err != nil {
			log.Fatal("Failed to call method:", err)
		}

		var schedules []schedule.Schedule
		if err := json.Unmarshal([]byte(payload), &schedules); err != nil {
			log.Fatal("Failed to parse schedules:", err)
		}
		if len(schedules) == 0 {
			fmt.Println("No schedules")
			return
		}
		for _, s := range schedules {
			blocks := 0
			for _, day := range s.Days {
				blocks += len(day)
			}
			fmt.Printf("%s  %s (%d block(s))\n", s.ID, s.Name, blocks)
		}
	},
}

var scheduleDaysFile string

var scheduleCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a schedule, optionally from a JSON day map",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		daysJSON := ""
		if scheduleDaysFile != "" {
			data, err := os.ReadFile(scheduleDaysFile)
			if err != nil {
				log.Fatal("Failed to read days file:", err)
			}
			daysJSON = string(data)
		}

		conn, obj := warden()
		defer conn.Close()

		var id string
		if err := obj.Call(ipc.InterfaceName+".CreateSchedule", 0, args[0], daysJSON).Store(&id); err != nil {
			log.Fatal("Failed to call method:", err)
		}
		fmt.Println("Created schedule:", id)
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj := warden()
		defer conn.Close()

		if err := obj.Call(ipc.InterfaceName+".DeleteSchedule", 0, args[0]).Store(); err != nil {
			log.Fatal("Failed to call method:", err)
		}
		fmt.Println("Deleted schedule:", args[0])
	},
}

var scheduleActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Make a schedule the active one (empty id clears it)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}

		conn, obj := warden()
		defer conn.Close()

		if err := obj.Call(ipc.InterfaceName+".SetActiveSchedule", 0, id).Store(); err != nil {
			log.Fatal("Failed to call method:", err)
		}
		if id == "" {
			fmt.Println("Active schedule cleared (always blocking)")
		} else {
			fmt.Println("Active schedule:", id)
		}
	},
}

func init() {
	scheduleCreateCmd.Flags().StringVarP(&scheduleDaysFile, "days", "d", "", "path to a JSON file with the weekly day map")
	scheduleCmd.AddCommand(scheduleListCmd, scheduleCreateCmd, scheduleDeleteCmd, scheduleActivateCmd)
	rootCmd.AddCommand(scheduleCmd)
}

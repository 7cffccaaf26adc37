package arg

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/SiteWarden/internal/ipc"
	"github.com/SoarinFerret/SiteWarden/internal/site"
)

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Manage blocked sites and their exceptions",
}

var siteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blocked sites",
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj := warden()
		defer conn.Close()

		var payload string
		if err := obj.Call(ipc.InterfaceName+".ListSites", 0).Store(&payload); err != nil {
			log.Fatal("Failed to call method:", err)
		}

		var sites []site.Site
		if err := json.Unmarshal([]byte(payload), &sites); err != nil {
			log.Fatal("Failed to parse sites:", err)
		}
		if len(sites) == 0 {
			fmt.Println("No blocked sites")
			return
		}
		for _, s := range sites {
			state := "enabled"
			if !s.Enabled {
				state = "disabled"
			}
			fmt.Printf("%s  %s (%s, blocked %d time(s))\n", s.ID, s.Pattern, state, s.BlockCount)
			for _, ex := range s.Exceptions {
				fmt.Printf("    except %s\n", ex)
			}
		}
	},
}

var siteAddCmd = &cobra.Command{
	Use:   "add <pattern>",
	Short: "Add a blocked site",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj := warden()
		defer conn.Close()

		var id string
		if err := obj.Call(ipc.InterfaceName+".AddSite", 0, args[0]).Store(&id); err != nil {
			log.Fatal("Failed to call method:", err)
		}
		fmt.Println("Added site:", id)
	},
}

var siteRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a blocked site",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj := warden()
		defer conn.Close()

		if err := obj.Call(ipc.InterfaceName+".RemoveSite", 0, args[0]).Store(); err != nil {
			log.Fatal("Failed to call method:", err)
		}
		fmt.Println("Removed site:", args[0])
	},
}

var siteExceptCmd = &cobra.Command{
	Use:   "except <id> <pattern>",
	Short: "Carve an exception out of a blocked site",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj := warden()
		defer conn.Close()

		if err := obj.Call(ipc.InterfaceName+".AddException", 0, args[0], args[1]).Store(); err != nil {
			log.Fatal("Failed to call method:", err)
		}
		fmt.Printf("Exception %s added to site %s\n", args[1], args[0])
	},
}

var siteEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Put a site back into active enforcement",
	Args:  cobra.ExactArgs(1),
	Run:   func(cmd *cobra.Command, args []string) { setSiteEnabled(args[0], true) },
}

var siteDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Remove a site from active enforcement without deleting it",
	Args:  cobra.ExactArgs(1),
	Run:   func(cmd *cobra.Command, args []string) { setSiteEnabled(args[0], false) },
}

var siteLimitCmd = &cobra.Command{
	Use:   "limit <id> <minutes>",
	Short: "Set a per-site daily budget limit (0 clears it)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var minutes float64
		if _, err := fmt.Sscanf(args[1], "%g", &minutes); err != nil {
			log.Fatal("invalid minutes value:", err)
		}

		conn, obj := warden()
		defer conn.Close()

		if err := obj.Call(ipc.InterfaceName+".SetSiteDailyLimit", 0, args[0], minutes).Store(); err != nil {
			log.Fatal("Failed to call method:", err)
		}
		if minutes > 0 {
			fmt.Printf("Site %s limited to %g minute(s) per day\n", args[0], minutes)
		} else {
			fmt.Println("Per-site limit cleared for site:", args[0])
		}
	},
}

func setSiteEnabled(id string, enabled bool) {
	conn, obj := warden()
	defer conn.Close()

	if err := obj.Call(ipc.InterfaceName+".SetSiteEnabled", 0, id, enabled).Store(); err != nil {
		log.Fatal("Failed to call method:", err)
	}
	if enabled {
		fmt.Println("Enabled site:", id)
	} else {
		fmt.Println("Disabled site:", id)
	}
}

func init() {
	siteCmd.AddCommand(siteListCmd, siteAddCmd, siteRemoveCmd, siteExceptCmd, siteEnableCmd, siteDisableCmd, siteLimitCmd)
	rootCmd.AddCommand(siteCmd)
}

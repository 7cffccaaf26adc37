package arg

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/SiteWarden/internal/ipc"
)

var pauseUntilMidnight bool

var pauseCmd = &cobra.Command{
	Use:     "pause <minutes>",
	Aliases: []string{"p"},
	Short:   "Temporarily suspend schedule-based blocking",
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		minutes := int32(-1)
		if !pauseUntilMidnight {
			if len(args) != 1 {
				log.Fatal("specify a duration in minutes, or --until-midnight")
			}
			if _, err := fmt.Sscanf(args[0], "%d", &minutes); err != nil {
				log.Fatal("invalid minutes value:", err)
			}
		}

		conn, obj := warden()
		defer conn.Close()

		if err := obj.Call(ipc.InterfaceName+".Pause", 0, minutes).Store(); err != nil {
			log.Fatal("Failed to call method:", err)
		}

		if pauseUntilMidnight {
			fmt.Println("Blocking paused until midnight")
		} else {
			fmt.Printf("Blocking paused for %d minute(s)\n", minutes)
		}
	},
}

func init() {
	pauseCmd.Flags().BoolVar(&pauseUntilMidnight, "until-midnight", false, "pause until the next local midnight")
	rootCmd.AddCommand(pauseCmd)
}

package arg

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/SiteWarden/internal/ipc"
)

var resumeCmd = &cobra.Command{
	Use:     "resume",
	Aliases: []string{"r"},
	Short:   "End a pause and put the schedule back in charge",
	Run: func(cmd *cobra.Command, args []string) {
		conn, obj := warden()
		defer conn.Close()

		if err := obj.Call(ipc.InterfaceName+".Resume", 0).Store(); err != nil {
			log.Fatal("Failed to call method:", err)
		}

		fmt.Println("Blocking resumed")
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

package commands

import (
	"fmt"
	"os"
	"sisudaka/lib/daka"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(checkCmd)
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Runs a single check-in with retries and exits.",
	Run: func(cmd *cobra.Command, args []string) {
		app := newApp()
		defer app.Close()

		err := app.service.Run(cmd.Context())
		if err != nil {
			app.Close()
			os.Exit(1)
		}
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Prints whether the current questionnaire has been answered.",
	Run: func(cmd *cobra.Command, args []string) {
		app := newApp()
		defer app.Close()

		listing, err := app.service.Status(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			app.Close()
			os.Exit(1)
		}
		printListing(listing)
	},
}

func printListing(listing daka.Listing) {
	state := "not answered"
	if listing.Answered {
		state = "answered"
	}
	fmt.Printf("%s (%s): %s\n", listing.Title, listing.ID, state)
}

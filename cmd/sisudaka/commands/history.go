package commands

import (
	"fmt"
	"os"
	"sisudaka/lib/history"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "The number of runs to show.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [-n <count>]",
	Short: "Prints the most recent check-in runs.",
	Run: func(cmd *cobra.Command, args []string) {
		config := readConfig()
		db := openHistory(config.History)
		defer db.Close()

		runs, err := history.NewStore(db).Recent(cmd.Context(), historyLimit)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			db.Close()
			os.Exit(1)
		}
		historyTable(runs).Render()
	},
}

func historyTable(runs []history.Run) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Started", "Took", "Questionnaire", "Outcome", "Attempts", "Error"})

	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.FinishedAt.Sub(run.StartedAt).String(),
			run.Title,
			string(run.Outcome),
			run.Attempts,
			run.Error,
		})
	}

	t.SetStyle(table.StyleRounded)
	return t
}

package commands

import (
	"fmt"
	"os"
	"sisudaka/lib/questionnaire"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(previewCmd)
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Answers the current questionnaire and prints the result without submitting it.",
	Run: func(cmd *cobra.Command, args []string) {
		app := newApp()
		defer app.Close()

		q, payload, err := app.service.Preview(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			app.Close()
			os.Exit(1)
		}

		previewTable(q, payload).Render()

		encoded, err := payload.Encode()
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return
		}
		fmt.Println(encoded)
	},
}

func previewTable(q *questionnaire.Questionnaire, payload questionnaire.Payload) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Question", "Type", "Required", "Answer"})

	i := 0
	for question := range q.All() {
		answer := ""
		if i < len(payload.AnswerData) {
			answer = strings.Join(payload.AnswerData[i].AnswerArr, ", ")
		}
		// show the choice text next to its id
		if question.IsChoice() {
			if choices, err := question.Choices(); err == nil {
				for _, choice := range choices {
					if choice.ID() == answer {
						answer = fmt.Sprintf("%s (%s)", choice.Text(), choice.ID())
						break
					}
				}
			}
		}
		t.AppendRow(table.Row{i + 1, question.Text(), question.RawType(), question.IsRequired(), answer})
		i++
	}

	t.SetStyle(table.StyleRounded)
	return t
}

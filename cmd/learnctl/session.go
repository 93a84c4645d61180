package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

var sessionExamType string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect exam sessions",
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status <username>",
	Short: "Show a user's active exam session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		examType := models.ExamType(sessionExamType)
		if examType != "" && !examType.IsValid() {
			return fmt.Errorf("unknown exam type %q", sessionExamType)
		}

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(app)

		session, err := app.Services.ExamSession().GetActive(cmd.Context(), args[0], examType)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, models.SessionResponse{Session: session})
		}

		out := cmd.OutOrStdout()
		if session == nil {
			fmt.Fprintf(out, "%s has no active %s session\n", args[0], examType.OrDefault())
			return nil
		}
		fmt.Fprintf(out, "Session:    %s\n", session.ID)
		fmt.Fprintf(out, "Exam:       %d (%s)\n", session.ExamID, session.ExamType)
		fmt.Fprintf(out, "Question:   %d\n", session.CurrentQuestion)
		fmt.Fprintf(out, "Answered:   %d\n", len(session.AnswerMap()))
		fmt.Fprintf(out, "Time left:  %ds\n", session.TimeLeft)
		fmt.Fprintf(out, "Last saved: %s\n", session.LastSavedAt.Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	sessionStatusCmd.Flags().StringVar(&sessionExamType, "exam-type", "", "pre_assessment or post_assessment")
	sessionCmd.AddCommand(sessionStatusCmd)
	rootCmd.AddCommand(sessionCmd)
}

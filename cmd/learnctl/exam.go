package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/learning-path-service/internal/examsession"
	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

var (
	apiURL         string
	apiToken       string
	apiUser        string
	shadowPath     string
	clientExamType string
	shadowMaxAge   time.Duration
)

var examCmd = &cobra.Command{
	Use:   "exam",
	Short: "Client-side exam session tools (talks to the HTTP API)",
}

var examResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Load the active exam session from the server or the local shadow",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, closeStore, err := newExamManager(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		session, err := manager.LoadActive(cmd.Context(), models.ExamType(clientExamType))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, map[string]interface{}{
				"state":   manager.State().String(),
				"mode":    manager.Mode().String(),
				"session": session,
			})
		}

		out := cmd.OutOrStdout()
		if session == nil {
			fmt.Fprintln(out, "No session to resume")
			return nil
		}
		fmt.Fprintf(out, "Resumed %s (%s) at question %d, %ds left\n",
			session.ID, manager.Mode(), session.CurrentQuestion, session.TimeLeft)
		return nil
	},
}

var examDiscardCmd = &cobra.Command{
	Use:   "discard",
	Short: "Cancel the active exam session",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, closeStore, err := newExamManager(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		session, err := manager.LoadActive(cmd.Context(), models.ExamType(clientExamType))
		if err != nil {
			return err
		}
		if session == nil {
			return errors.New("no active session")
		}
		manager.Cancel(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "Discarded %s\n", session.ID)
		return nil
	},
}

func newExamManager(cmd *cobra.Command) (*examsession.Manager, func(), error) {
	if apiUser == "" {
		return nil, nil, errors.New("--user is required")
	}
	token := apiToken
	if token == "" {
		token = os.Getenv("LEARNING_API_TOKEN")
	}

	path := shadowPath
	if path == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, nil, err
		}
		dir = filepath.Join(dir, "learnctl")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
		path = filepath.Join(dir, "exam-sessions.db")
	}

	logger := newLogger()
	local, err := examsession.OpenLocalStore(cmd.Context(), "file:"+path+"?_pragma=busy_timeout(5000)", apiUser,
		examsession.WithMaxAge(shadowMaxAge))
	if err != nil {
		return nil, nil, err
	}
	remote := examsession.NewRemoteStore(apiURL, examsession.StaticToken(token))
	manager := examsession.NewManager(remote, local, examsession.WithLogger(logger))
	return manager, func() { _ = local.Close() }, nil
}

func init() {
	flags := examCmd.PersistentFlags()
	flags.StringVar(&apiURL, "api", "http://localhost:8080", "learning path service base URL")
	flags.StringVar(&apiToken, "token", "", "bearer token (default $LEARNING_API_TOKEN)")
	flags.StringVar(&apiUser, "user", "", "username owning the local shadow")
	flags.StringVar(&shadowPath, "shadow-db", "", "local shadow database (default in the user cache dir)")
	flags.StringVar(&clientExamType, "exam-type", "", "pre_assessment or post_assessment")
	flags.DurationVar(&shadowMaxAge, "shadow-max-age", examsession.ShadowMaxAge, "ignore local shadows older than this")

	examCmd.AddCommand(examResumeCmd, examDiscardCmd)
	rootCmd.AddCommand(examCmd)
}

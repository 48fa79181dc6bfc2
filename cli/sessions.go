package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/datafed/cloudnode/pkg/protocol"
	"github.com/datafed/cloudnode/pkg/sdk"
)

var csdk sdk.SDK

func SetSDK(s sdk.SDK) {
	csdk = s
}

var (
	apiKey      string
	configFile  string
	watchFrames bool
)

func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions [start|status|reset]",
		Short: "Training sessions",
		Long:  `Start, inspect and reset training sessions.`,
	}

	startCmd := &cobra.Command{
		Use:   "start <repo_id>",
		Short: "Start session",
		Long: `Register as a dashboard and start a new training session.

The session definition is read from the JSON file given with --config.

Example:
  cloudnode-cli sessions start repo-1 --api-key s3cret --config session.json --watch`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			data, err := os.ReadFile(configFile)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			var req protocol.NewSession
			if err := json.Unmarshal(data, &req); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			req.Repo = args[0]

			dash, err := csdk.Dashboard(args[0], apiKey)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			defer dash.Close()

			if err := dash.StartSession(req); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)

			if !watchFrames {
				return
			}

			for {
				frame, err := dash.ReadFrame()
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				logJSONCmd(*cmd, frame.Raw)
				if frame.Error || frame.Action == protocol.ActionStop {
					return
				}
			}
		},
	}
	startCmd.Flags().StringVar(&apiKey, "api-key", "", "API key of the repo")
	startCmd.Flags().StringVar(&configFile, "config", "session.json", "Path to the session definition file")
	startCmd.Flags().BoolVar(&watchFrames, "watch", false, "Stream server frames until the session stops")

	statusCmd := &cobra.Command{
		Use:   "status <repo_id>",
		Short: "Session status",
		Long:  `View the live session state of a repo.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			snap, err := csdk.SessionStatus(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, snap)
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset <repo_id>",
		Short: "Reset session",
		Long:  `Force-stop whatever session a repo is running.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := csdk.ResetSession(args[0]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	cmd.AddCommand(startCmd)
	cmd.AddCommand(statusCmd)
	cmd.AddCommand(resetCmd)

	return cmd
}

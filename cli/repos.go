package cli

import (
	"github.com/spf13/cobra"
)

func NewReposCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repos [set-key]",
		Short: "Repos manager",
		Long:  `Provision repos on the coordinator.`,
	}

	setKeyCmd := &cobra.Command{
		Use:   "set-key <repo_id> <api_key>",
		Short: "Set repo key",
		Long:  `Set the API key nodes must present when registering under a repo.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := csdk.SetRepoKey(args[0], args[1]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	cmd.AddCommand(setKeyCmd)

	return cmd
}

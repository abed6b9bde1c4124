package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/docvault/pkg/configs"
	mq "github.com/yeisme/docvault/pkg/internal/storage/mq"
)

var (
	mqCmd = &cobra.Command{
		Use:     "mq",
		Short:   "Message queue related commands",
		Aliases: []string{"messagequeue"},
	}

	// 列出注册的 MQ 后端，标出事件发布实际使用的那个.
	mqListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list registered mq backends",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			current := configs.GetConfig().MQ.Type

			fmt.Fprintln(cmd.OutOrStdout(), "Registered mq types:")
			for _, t := range mq.GetRegisteredMQTypes() {
				marker := ""
				if t == current {
					marker = " (configured)"
				}

				fmt.Fprintf(cmd.OutOrStdout(), "   - %s%s\n", t, marker)
			}
		},
	}
)

// registerMQCommands 挂载 mq 子命令树.
func registerMQCommands() {
	rootCmd.AddCommand(mqCmd)
	mqCmd.AddCommand(mqListCmd)
}

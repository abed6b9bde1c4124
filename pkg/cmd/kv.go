package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/docvault/pkg/configs"
	kv "github.com/yeisme/docvault/pkg/internal/storage/kv"
)

var (
	kvCmd = &cobra.Command{
		Use:     "kv",
		Short:   "Key-Value store related commands",
		Aliases: []string{"keyvalue"},
	}

	// 列出注册的 KV 后端，标出计数缓存实际使用的那个.
	kvListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list registered kv backends",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			current := configs.GetConfig().KV.Type

			fmt.Fprintln(cmd.OutOrStdout(), "Registered kv types:")
			for _, t := range kv.GetRegisteredKVTypes() {
				marker := ""
				if string(t) == current {
					marker = " (configured)"
				}

				fmt.Fprintf(cmd.OutOrStdout(), "   - %s%s\n", t, marker)
			}
		},
	}
)

// registerKVCommands 挂载 kv 子命令树.
func registerKVCommands() {
	rootCmd.AddCommand(kvCmd)
	kvCmd.AddCommand(kvListCmd)
}

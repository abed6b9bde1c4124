package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/docvault/pkg/configs"
	"github.com/yeisme/docvault/pkg/internal/storage/db"
)

var (
	dbCmd = &cobra.Command{
		Use:   "db",
		Short: "Database related commands",
	}

	// 列出编译进来的数据库驱动，标出配置选中的那个.
	dbListCmd = &cobra.Command{
		Use:     "ls",
		Short:   "list registered database drivers",
		Aliases: []string{"list"},
		Run: func(cmd *cobra.Command, args []string) {
			current := configs.GetConfig().DB.Type

			fmt.Fprintln(cmd.OutOrStdout(), "Registered database types:")
			for _, dbType := range db.GetRegisteredDBTypes() {
				marker := ""
				if dbType == current {
					marker = " (configured)"
				}

				fmt.Fprintf(cmd.OutOrStdout(), " - %s%s\n", dbType, marker)
			}
		},
	}
)

// registerDBCommands 挂载 db 子命令树.
func registerDBCommands() {
	rootCmd.AddCommand(dbCmd)

	dbCmd.AddCommand(dbListCmd)
}

package main

import (
	"fmt"
	"log"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/vendops/vendwatch/internal"
	"github.com/vendops/vendwatch/pkg/version"
)

var (
	configPath string
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "vendwatch",
	Short: "VendWatch 主机性能监控与告警服务",
	Long:  `VendWatch 周期性采集主机资源快照，分层聚合历史数据，并根据告警规则触发升级通知。`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// versionCmd 版本命令
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("VendWatch v%s\n", version.Version)
		fmt.Printf("OS: %s\n", runtime.GOOS)
		fmt.Printf("Arch: %s\n", runtime.GOARCH)
		fmt.Printf("Go Version: %s\n", runtime.Version())
	},
}

// runCmd 运行命令
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "运行服务",
	Long:  `启动采集、聚合、告警检查和 API 服务`,
	Run: func(cmd *cobra.Command, args []string) {
		internal.Run(configPath)
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "配置文件路径")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

//go:build !dev

package env

import (
	"os"
)

// 未显式设置 DEV 时默认生产模式
func init() {
	if os.Getenv("DEV") == "" {
		os.Setenv("DEV", "false")
	}
}

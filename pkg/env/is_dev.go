//go:build dev

package env

import (
	"fmt"
	"os"
)

// -tags dev 编译时强制开发模式
func init() {
	os.Setenv("DEV", "true")
	fmt.Println("DEV MODE is enabled")
}

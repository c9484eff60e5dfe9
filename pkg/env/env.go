package env

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// 依次尝试加载 .env, 找不到时只使用进程环境变量
var envFiles = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

var loaded string

func init() {
	if p := os.Getenv("ENV_FILE"); p != "" {
		if err := godotenv.Load(p); err != nil {
			panic(fmt.Sprintf("加载 %s 失败: %v", p, err))
		}
		loaded = p
		return
	}
	for _, path := range envFiles {
		if err := godotenv.Load(path); err == nil {
			loaded, _ = filepath.Abs(path)
			return
		}
	}
}

// Loaded 返回实际加载的 .env 路径, 未加载时为空
func Loaded() string {
	return loaded
}

func String(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func MustString(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("环境变量 %s 不能为空", key))
	}
	return value
}

// Strings 读取逗号分隔的列表, 忽略空白项
func Strings(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func Int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}

func Float(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func Bool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func IsDev() bool {
	return os.Getenv("DEV") == "true"
}

func IsProd() bool {
	return !IsDev()
}

func IsDebug() bool {
	return Bool("DEBUG", false)
}

// 将相对路径转换为相对于 BASE_DIR 的路径, 绝对路径原样返回
func DirPath(key string, defaultValue string) string {
	dir := tildeExpand(String(key, defaultValue))
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(BaseDir(), dir)
}

func BaseDir() string {
	return tildeExpand(String("BASE_DIR", "."))
}

// 展开 ~(tilde) 字符，例如 ~/log 展开为 $HOME/log
func tildeExpand(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	usr, err := user.Current()
	if err != nil {
		return p
	}
	if p == "~" {
		return usr.HomeDir
	}
	return filepath.Join(usr.HomeDir, p[2:])
}

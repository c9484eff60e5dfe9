package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/cometwk/standards/cmd"
	"github.com/cometwk/standards/pkg/config"
)

func main() {
	if len(os.Args) > 1 {
		// 运行工具命令
		cmd.Main()
		return
	}

	if err := cmd.Serve(config.Load()); err != nil {
		logrus.Fatal(err)
	}
}

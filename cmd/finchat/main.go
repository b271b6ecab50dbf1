package main

import (
	"os"

	"github.com/yashward001/finchat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

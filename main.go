package main

import (
	"github.com/Vivicai1005/aiter/cmd/cli"

	_ "github.com/Vivicai1005/aiter/pkg/logger"
)

func main() {
	cli.Execute()
}

package main

import (
	"github.com/versa-dev/versa/cli"
)

func main() {
	cli.Run()
}

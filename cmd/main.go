package main

import "github.com/dyike/CortexTrader/internal/cli"

func main() {
	cli.Run()
}

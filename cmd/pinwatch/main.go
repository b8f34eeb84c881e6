package main

import "github.com/pinwater/pinwatch/internal/cli"

func main() {
	cli.Execute()
}

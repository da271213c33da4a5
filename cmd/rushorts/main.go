package main

import "github.com/forPelevin/rushorts/internal/cli"

func main() {
	cli.Main()
}

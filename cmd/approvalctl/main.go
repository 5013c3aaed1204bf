package main

import "github.com/garyjia/approval-engine/internal/cli"

func main() {
	cli.Execute()
}

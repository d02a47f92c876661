package main

import "github.com/bholliman55/securewatch-n8n/internal/cli"

func main() {
	cli.Execute()
}

package main

import "cyclescan/internal/cli"

func main() {
	cli.Execute()
}

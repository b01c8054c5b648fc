package main

import "alcyxob/workout-chat/internal/cli"

func main() {
	cli.Execute()
}

package main

import "robo-offer-alerts/internal/cli"

func main() {
	cli.Execute()
}

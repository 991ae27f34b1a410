package main

import "crm-alerts/internal/cli"

func main() {
	cli.Execute()
}

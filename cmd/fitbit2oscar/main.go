package main

import "github.com/ashrobertsdragon/fitbit2oscar/internal/cli"

func main() {
	cli.Execute()
}

package main

import (
	"github.com/francois-poidevin/flightmap/cli/cmd"
)

func main() {
	cmd.Execute()
}

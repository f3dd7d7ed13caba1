package main

import (
	"github.com/poolhouse-labs/stakewatch/cmd"
)

func main() {
	cmd.Execute()
}

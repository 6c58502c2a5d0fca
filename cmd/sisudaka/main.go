package main

import (
	"sisudaka/cmd/sisudaka/commands"
	"sisudaka/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}

// Command nalixd is the reference dispatch daemon: it loads a
// configuration, wires the priority channel, middleware pipeline and
// opcode catalog into a Dispatcher, and serves multiplexed connections
// over transportmux until interrupted.
package main

import "os"

var buildVersion = "dev"

func main() {
	os.Exit(Execute(buildVersion))
}

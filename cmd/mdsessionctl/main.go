// Command mdsessionctl is an operator tool for inspecting a rank's
// persisted Session Map object directly against its configured
// object-store backend, without going through a running MDS process.
package main

import (
	"os"

	"github.com/marmos91/mdsessiond/cmd/mdsessionctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

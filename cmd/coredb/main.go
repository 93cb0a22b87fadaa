// Command coredb wires the storage core's components together (disk
// manager, buffer pool, B+ tree index, lock manager, executors) and drives
// a scripted demo workload, standing in for the interactive shell a full
// system would ship.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "coredb:", err)
		os.Exit(1)
	}
}

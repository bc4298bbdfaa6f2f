// archstatus scans, validates, merges and exports architecture status
// documents.
//
// Usage:
//
//	archstatus init <workspace>
//	archstatus add <workspace> <source> [--scanner gopkg] [--set key=value]
//	archstatus scan <workspace> | scan --dir <path> [-o out]
//	archstatus normalize <in> [-o out]
//	archstatus validate <doc> [--agents f] [-o out] [--metrics-file f]
//	archstatus merge <workspace|files...> [-o out]
//	archstatus diagram <doc> [--mermaid f] [--dot f]
//	archstatus report <doc> [--validation f] -o <dir>
//	archstatus snapshot <workspace> <dst>
package main

import (
	"fmt"
	"os"

	"archstatus/internal/logging"
)

func main() {
	err := newRootCmd().Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "archstatus: %v\n", err)
		os.Exit(1)
	}
}

// Command rfcdep caches IETF documents and resolves their relations.
package main

import (
	"fmt"
	"os"

	"github.com/mxyns/ietf-rfc-dep/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rfcdep:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

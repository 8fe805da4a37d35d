package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/Blackdeer1524/pgcatalog/src/cli"
)

func main() {
	if err := cli.NewRootCmd(afero.NewOsFs()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

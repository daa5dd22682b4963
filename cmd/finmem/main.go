package main

import (
	"os"

	"github.com/oceanbase/finmem-go/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

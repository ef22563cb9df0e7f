// Command diary は交換日記アプリのAPIサーバーとその運用コマンドを提供する。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/sharediary/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "diary: %v\n", err)
		os.Exit(1)
	}
}

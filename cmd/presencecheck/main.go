package main

import (
	"fmt"
	"os"

	"github.com/sandeepkv93/realtime-hub/internal/tools/common"
	"github.com/sandeepkv93/realtime-hub/internal/tools/presencecheck"
)

func main() {
	if err := common.LoadEnvFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if err := presencecheck.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"spotd/internal/spotctl"
)

func main() {
	if err := spotctl.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

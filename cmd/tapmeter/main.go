// tapmeter measures two-key tapping speed and consistency.
// Capture Z/X presses, watch live BPM and UR, export CSV reports.
package main

import (
	"os"

	"tapmeter/cmd/tapmeter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

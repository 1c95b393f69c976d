// trialsim rehearses a courtroom phase against a live AI opposing counsel.
//
// Usage:
//
//	trialsim run --case case.yaml                      # Start the terminal UI
//	trialsim run --case case.yaml -p voir-dire -m learn
//	trialsim run --case case.yaml --listen :8089      # Also mirror state to browsers
//	trialsim phases                                    # List phases and modes
//
// The Gemini API key is read from GEMINI_API_KEY or GOOGLE_API_KEY, a .env
// file in the working directory is loaded first.
package main

import (
	"fmt"
	"os"

	"github.com/koscakluka/ema-trial/cmd/trialsim/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

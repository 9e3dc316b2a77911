// Command agent runs the multibank kiosk backend and its operator tools.
package main

import (
	"os"

	"github.com/shopspring/decimal"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

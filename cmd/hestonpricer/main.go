// Command hestonpricer prices a European call under Heston and Black-Scholes.
package main

import (
	"os"

	"heston-pricer/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

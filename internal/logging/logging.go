// Package logging wraps go-ethereum's structured logger so the rest of
// the gateway logs consistently without each package reaching into
// go-ethereum/log directly.
package logging

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
)

// Setup installs a handler that writes leveled logs in go-ethereum's
// terminal format to stderr, without color and whether or not stderr
// is a terminal.
func Setup(verbose bool) {
	lvl := log.LvlInfo
	if verbose {
		lvl = log.LvlDebug
	}
	handler := log.StreamHandler(os.Stderr, log.TerminalFormat(false))
	log.Root().SetHandler(log.LvlFilterHandler(lvl, handler))
}

// New returns a child logger carrying the given key/value context,
// e.g. logging.New("currency", model.Eth).
func New(ctx ...interface{}) log.Logger {
	return log.New(ctx...)
}

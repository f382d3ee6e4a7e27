package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/qs3c/betfaro_server/internal/betting"
)

const usage = `usage: betstats [-dir DIR] <command> [flags]

commands:
  add      -home TEAM -away TEAM -market KEY -odds N [-stake N] [-note TEXT]
  resolve  -id ID -outcome won|lost|void
  list
  stats
  markets`

var errUsage = errors.New(usage)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		log.Fatalf("betstats: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	global := flag.NewFlagSet("betstats", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	dir := global.String("dir", defaultDir(), "Directory holding "+betting.FileName)
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		return errUsage
	}

	ledger, err := betting.NewLedger(betting.NewFileStore(*dir))
	if err != nil {
		return err
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "add":
		return add(ledger, rest, out)
	case "resolve":
		return resolve(ledger, rest, out)
	case "list":
		return writeJSON(out, ledger.Bets())
	case "stats":
		return writeJSON(out, ledger.Stats())
	case "markets":
		return writeJSON(out, betting.Markets())
	}
	return errUsage
}

func add(ledger *betting.Ledger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	home := fs.String("home", "", "Home team")
	away := fs.String("away", "", "Away team")
	market := fs.String("market", "", "Market key, see `betstats markets`")
	odds := fs.Float64("odds", 0, "Decimal odds")
	stake := fs.Float64("stake", 0, "Stake, optional")
	note := fs.String("note", "", "Free text note")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	in := betting.NewBet{
		HomeTeam: *home,
		AwayTeam: *away,
		Market:   *market,
		Odds:     *odds,
		Note:     *note,
	}
	if *stake > 0 {
		in.Stake = stake
	}

	bet, err := ledger.Add(in)
	if err != nil {
		return err
	}
	return writeJSON(out, bet)
}

func resolve(ledger *betting.Ledger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	id := fs.String("id", "", "Bet ID")
	outcome := fs.String("outcome", "", "won, lost or void; anything else is recorded as manual")
	if err := fs.Parse(args); err != nil || *id == "" {
		return errUsage
	}

	bet, err := ledger.Resolve(*id, *outcome)
	if err != nil {
		return err
	}
	return writeJSON(out, bet)
}

func defaultDir() string {
	if dir := os.Getenv("BETSTATS_DIR"); dir != "" {
		return dir
	}
	return "."
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

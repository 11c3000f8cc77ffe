// Command kharcha-parse prints the draft transaction the parser builds from
// a sentence given as arguments or on stdin.
//
//	kharcha-parse Spent 500 on groceries yesterday
//	echo "Received 10000 salary today" | kharcha-parse -today 2024-06-10
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/parser"
)

type output struct {
	Amount       *string `json:"amount"`
	Category     string  `json:"category"`
	Date         string  `json:"date"`
	DateResolved bool    `json:"date_resolved"`
	Type         string  `json:"type"`
	Text         string  `json:"text"`
}

func main() {
	today := flag.String("today", "", "reference date as YYYY-MM-DD (default: current date)")
	idiomsOnly := flag.Bool("idioms-only", false, "skip the general date parser")
	flag.Parse()

	if err := run(*today, *idiomsOnly, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "kharcha-parse:", err)
		os.Exit(1)
	}
}

func run(today string, idiomsOnly bool, args []string) error {
	ref := time.Now()
	if today != "" {
		d, err := core.ParseDate(today)
		if err != nil {
			return fmt.Errorf("invalid -today %q: %w", today, err)
		}
		ref = d.Time
	}

	var opts []parser.Option
	if idiomsOnly {
		opts = append(opts, parser.WithDateParser(nil))
	}
	p := parser.New(nil, opts...)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if len(args) > 0 {
		return enc.Encode(toOutput(p.ParseAt(strings.Join(args, " "), ref)))
	}

	// One sentence per line.
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := enc.Encode(toOutput(p.ParseAt(line, ref))); err != nil {
			return err
		}
	}
	return sc.Err()
}

func toOutput(d parser.Draft) output {
	out := output{
		Category:     d.Category,
		Date:         d.Date.String(),
		DateResolved: d.DateResolved,
		Type:         string(d.Type),
		Text:         d.Text,
	}
	if d.Amount.Valid {
		s := d.Amount.Decimal.String()
		out.Amount = &s
	}
	return out
}

// Command inspect prints what the daemon stored in its badger directory.
// The daemon must be stopped, or the store opened with -bypass-lock.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"peerchat/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	// INSPECT_COLOURS highlights record types
	Colours bool `envconfig:"INSPECT_COLOURS" default:"true"`
}

var typeColours = map[string]color.Color{
	"VISITED":    color.FgGreen,
	"NICKNAME":   color.FgCyan,
	"SECRET_KEY": color.FgYellow,
	"RAW":        color.FgGray,
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	prefix := flag.String("prefix", "", "Only show keys with this prefix")
	bypassLock := flag.Bool("bypass-lock", false, "Open the store while the daemon holds it")
	flag.Parse()

	db, err := openDB(*dbPath, *bypassLock)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Last visit", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				view := repositories.Describe(string(item.Key()), v)
				kind := view.Type
				if config.Colours {
					kind = typeColours[view.Type].Render(kind)
				}
				table.Append([]string{shorten(view.Key), kind, view.Timestamp, view.Detail})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// shorten keeps topic keys readable: "visited:" plus the first 12 hex digits.
func shorten(key string) string {
	if rest, ok := strings.CutPrefix(key, "visited:"); ok && len(rest) > 12 {
		return "visited:" + rest[:12] + "…"
	}
	return key
}

func openDB(path string, bypassLock bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(bypassLock)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return db, nil
}

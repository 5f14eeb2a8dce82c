// Command offline-attack recovers client passwords from a capture file by
// trying a wordlist against each recorded key exchange.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"

	"github.com/dmitrijs2005/gophkerb/internal/attack"
	"github.com/dmitrijs2005/gophkerb/internal/capture"
	"github.com/dmitrijs2005/gophkerb/internal/flagx"
)

func main() {
	capturePath, wordlistPath, workers := "messages.json", "wordlist.txt", runtime.NumCPU()
	flagx.Parse("offline-attack", func(fs *flag.FlagSet) {
		fs.StringVar(&capturePath, "r", capturePath, "capture file")
		fs.StringVar(&wordlistPath, "w", wordlistPath, "wordlist, one password per line")
		fs.IntVar(&workers, "n", workers, "number of workers")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	entries, err := capture.Load(capturePath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	f, err := os.Open(wordlistPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	words, err := attack.ReadWordlist(f)
	f.Close()
	if err != nil {
		log.Fatalf("%v", err)
	}

	results, err := attack.Run(ctx, entries, words, workers)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(results) == 0 {
		fmt.Println("No password found")
		return
	}
	for _, r := range results {
		fmt.Printf("Client %s: password %q\n", r.ClientID, r.Password)
	}
}

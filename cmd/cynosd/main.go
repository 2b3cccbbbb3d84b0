// Command cynosd is the embedding daemon: it owns one engine.Database
// for the lifetime of the process, serializes all access to it through
// a daemon.Loop, and optionally checkpoints to a Badger store at
// startup and shutdown. It has no network surface of its own — that is
// cmd/cynosmcp's job, built on the same daemon.Loop — cynosd exists to
// show the concurrency model standing on its own: the core engine has
// no internal lock, and a host process adds exactly one goroutine's
// worth of serialization around it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kasuganosora/cynos/checkpoint"
	"github.com/kasuganosora/cynos/daemon"
	"github.com/kasuganosora/cynos/engine"
)

func main() {
	dataDir := flag.String("data-dir", "", "badger checkpoint directory (empty disables checkpointing)")
	inMemory := flag.Bool("in-memory", false, "run the checkpoint store in memory (for smoke-testing)")
	flag.Parse()

	var store *badger.DB
	var db *engine.Database

	if *dataDir != "" || *inMemory {
		s, err := checkpoint.Open(*dataDir, *inMemory)
		if err != nil {
			log.Fatalf("cynosd: open checkpoint store: %v", err)
		}
		store = s
		loaded, err := checkpoint.Load(s)
		if err != nil {
			log.Fatalf("cynosd: load checkpoint: %v", err)
		}
		db = loaded
	} else {
		db = engine.NewDatabase()
	}

	loop := daemon.NewLoop(db)

	fmt.Println("cynosd: running (single-threaded engine, serialized by one goroutine)")
	fmt.Println("send SIGINT/SIGTERM to checkpoint and exit")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if store != nil {
		if _, err := loop.Submit(context.Background(), func(d *engine.Database) (any, error) {
			return nil, checkpoint.Save(d, store)
		}); err != nil {
			log.Printf("cynosd: checkpoint save failed: %v", err)
		}
	}

	loop.Stop()

	if store != nil {
		if err := store.Close(); err != nil {
			log.Printf("cynosd: closing checkpoint store: %v", err)
		}
	}
}

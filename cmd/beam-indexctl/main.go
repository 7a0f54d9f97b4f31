// beam-indexctl triggers a library scan against a running indexer RPC
// endpoint, for operators who want to scan out-of-band.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/justin13888/beam/internal/indexrpc"
)

func main() {
	addr := flag.String("addr", "http://localhost:9001", "indexer RPC base URL")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-addr URL] <library-id>\n", os.Args[0])
		os.Exit(2)
	}
	libraryID := flag.Arg(0)

	client := indexrpc.NewClient(*addr)
	resp, err := client.ScanLibrary(libraryID)
	if err != nil {
		log.Fatalf("scan: %v", err)
	}
	fmt.Printf("scan complete: %d files added\n", resp.FilesAdded)
}

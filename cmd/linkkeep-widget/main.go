// linkkeep-widget renders the widget view of the link database from the
// command line: the most recent saves and everything due soon. It reads the
// same sqlite file as the server, so it works whether or not the server is
// running.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/linkkeep/linkkeep/pkg/linkkeep/database"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/models"
	"github.com/linkkeep/linkkeep/pkg/linkkeep/widget"
)

func main() {
	dbPath := flag.String("db", "linkkeep.db", "path to the link database")
	n := flag.Int("n", 5, "number of recent links to show")
	flag.Parse()

	db, err := database.Connect(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	reader := widget.NewReader(db)
	now := time.Now()

	recent, err := reader.Recent(*n)
	if err != nil {
		log.Fatalf("Failed to load recent links: %v", err)
	}
	fmt.Printf("Recent (%d)\n", len(recent))
	for _, link := range recent {
		fmt.Printf("  %s\n    %s\n", displayTitle(link), link.URL)
	}

	due, err := reader.DueSoon(now)
	if err != nil {
		log.Fatalf("Failed to load due links: %v", err)
	}
	fmt.Printf("\nDue soon (%d)\n", len(due))
	for _, link := range due {
		fmt.Printf("  %s  %s\n    %s\n", link.Deadline.Format("Mon Jan 2"), displayTitle(link), link.URL)
	}
}

func displayTitle(link models.Link) string {
	if link.Title != "" {
		return link.Title
	}
	return link.URL
}

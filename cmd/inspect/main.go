package main

import (
	"chat-client/domain/chat"
	"chat-client/infrastructure/storage"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func main() {
	_ = godotenv.Load()
	defaultPath := os.Getenv("HISTORY_CACHE_PATH")
	if defaultPath == "" {
		defaultPath = database.DefaultPath
	}
	dbPath := flag.String("db", defaultPath, "Path to the history cache")
	owner := flag.String("owner", "", "Only show conversations of this user id")
	port := flag.Int("http", 0, "Serve the web inspector on this port instead of printing a table")
	flag.Parse()

	// Read-only, the client may hold the lock
	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if *port > 0 {
		serve(db, *port)
		return
	}

	repository := storage.NewHistoryRepository(db, logs.GetLoggerFromString("WARN"), nil)
	summaries, err := repository.ListConversations()
	if err != nil {
		log.Fatal("Error while scanning history: ", err)
	}
	if *owner != "" {
		summaries = lo.Filter(summaries, func(s storage.ConversationSummary, _ int) bool {
			return s.Owner == chat.UserID(*owner)
		})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Owner", "Contact", "Messages", "Stored at"})
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
	for _, s := range summaries {
		table.Append([]string{
			string(s.Owner),
			string(s.Contact),
			fmt.Sprintf("%d", s.Count),
			s.StoredAt.Local().Format(time.DateTime),
		})
	}
	table.Render()
	fmt.Printf("\n%d conversation(s)\n", len(summaries))
}

func serve(db *badger.DB, port int) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Inspector started at http://localhost:%d/inspect\n", port)
	database.StartDebugServer(db, port, "/inspect", historyMapper)
	<-ctx.Done()
}

func historyMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	summary, err := storage.DecodeSummary(val)
	if err != nil {
		row.Detail = "Error: decode failed"
		return row
	}
	row.Detail = fmt.Sprintf("%s -> %s, %d messages, stored %s",
		summary.Owner, summary.Contact, summary.Count, summary.StoredAt.Format(time.RFC3339))
	return row
}

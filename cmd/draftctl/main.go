// draftctl inspects and manages autosaved drafts in the scribe database.
//
// Usage:
//
//	draftctl [-db path] list
//	draftctl [-db path] show <context>
//	draftctl [-db path] clear <context>
//
// Contexts are "new" for the new-post draft and "post:<slug>" for edits.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	_ "github.com/mattn/go-sqlite3"

	"github.com/scribehq/scribe/internal/db"
	"github.com/scribehq/scribe/internal/editor"
	"github.com/scribehq/scribe/internal/util/compression"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("211"))
	contextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	dbPath := flag.String("db", "./scribe.db", "Path to the scribe database")
	codec := flag.String("compression", "zstd", "Snapshot compression codec (zstd or gzip)")
	flag.Parse()

	if flag.NArg() < 1 {
		fatal("usage: draftctl [-db path] list | show <context> | clear <context>")
	}

	compressor, err := compression.ForName(*codec)
	if err != nil {
		fatal(err.Error())
	}

	database := db.NewSQLite(*dbPath)
	if err := database.Init(); err != nil {
		fatal(fmt.Sprintf("Error opening database: %v", err))
	}
	defer database.Close()

	store := editor.NewSQLiteStore(database, compressor)

	switch flag.Arg(0) {
	case "list":
		listDrafts(database)
	case "show":
		showDraft(store, requireContext())
	case "clear":
		clearDraft(store, requireContext())
	default:
		fatal("unknown command: " + flag.Arg(0))
	}
}

func requireContext() editor.Context {
	if flag.NArg() < 2 {
		fatal("a draft context is required, e.g. \"new\" or \"post:my-slug\"")
	}
	return editor.Context(flag.Arg(1))
}

func listDrafts(database db.DB) {
	rows, err := database.Query("SELECT context, saved_at FROM drafts ORDER BY saved_at DESC")
	if err != nil {
		fatal(fmt.Sprintf("Error listing drafts: %v", err))
	}
	defer rows.Close()

	fmt.Println(headerStyle.Render("Stored drafts"))

	count := 0
	for rows.Next() {
		var context string
		var savedAt time.Time
		if err := rows.Scan(&context, &savedAt); err != nil {
			fatal(fmt.Sprintf("Error reading draft row: %v", err))
		}
		count++
		fmt.Printf("  %s  %s\n",
			contextStyle.Render(context),
			dimStyle.Render(savedAt.Local().Format(time.RFC1123)))
	}
	if err := rows.Err(); err != nil {
		fatal(fmt.Sprintf("Error reading drafts: %v", err))
	}

	if count == 0 {
		fmt.Println(dimStyle.Render("  (none)"))
	}
}

func showDraft(store editor.Store, ctx editor.Context) {
	snap, ok := store.Load(ctx)
	if !ok {
		fatal("no draft stored for context " + string(ctx))
	}

	fmt.Println(headerStyle.Render("Draft " + string(ctx)))
	fmt.Printf("  %s %s\n", dimStyle.Render("saved:"), snap.SavedAt.Local().Format(time.RFC1123))
	fmt.Printf("  %s %s\n", dimStyle.Render("title:"), snap.Title)
	fmt.Printf("  %s %s\n", dimStyle.Render("slug:"), snap.Slug)
	fmt.Printf("  %s %s\n", dimStyle.Render("date:"), snap.Date)
	fmt.Printf("  %s %v\n", dimStyle.Render("draft:"), snap.Draft)
	if len(snap.Tags) > 0 {
		fmt.Printf("  %s %s\n", dimStyle.Render("tags:"), strings.Join(snap.Tags, ", "))
	}
	fmt.Printf("  %s %s\n", dimStyle.Render("content:"), preview(snap.Content, 200))
}

func clearDraft(store editor.Store, ctx editor.Context) {
	if !store.Exists(ctx) {
		fatal("no draft stored for context " + string(ctx))
	}
	if err := store.Clear(ctx); err != nil {
		fatal(fmt.Sprintf("Error clearing draft: %v", err))
	}
	fmt.Println("Cleared draft " + contextStyle.Render(string(ctx)))
}

func preview(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(msg))
	os.Exit(1)
}

// Package digest builds the daily new-book notification digest: it scans the
// catalog for recent additions, resolves subscribers per category and hands
// one message per category to a worker pool for publishing.
package digest

import (
	"sort"
	"strings"

	"libraryservice/internal/catalog"
)

// RecipientSet is a deduplicated set of recipient addresses.
type RecipientSet map[string]struct{}

// Add inserts email after normalizing it. Blank input is ignored.
func (s RecipientSet) Add(email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return
	}
	s[email] = struct{}{}
}

// Sorted returns the members in lexical order.
func (s RecipientSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for email := range s {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}

// CategoryRecipientMap maps a category to its subscribers for one run.
type CategoryRecipientMap map[string]RecipientSet

// Categories returns the keys in lexical order.
func (m CategoryRecipientMap) Categories() []string {
	out := make([]string, 0, len(m))
	for category := range m {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// Item describes one new book in a message.
type Item struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Category string `json:"category"`
}

// Message is the payload published for one category.
type Message struct {
	Recipients []string `json:"recipients"`
	Items      []Item   `json:"items"`
}

// Job is the unit handed to the executor: one category per run.
type Job struct {
	Category   string
	Recipients []string
	Items      []Item
}

// Message converts the job to its wire payload.
func (j Job) Message() Message {
	recipients := j.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	items := j.Items
	if items == nil {
		items = []Item{}
	}
	return Message{Recipients: recipients, Items: items}
}

func itemsByCategory(books []catalog.Book) map[string][]Item {
	out := make(map[string][]Item)
	for _, b := range books {
		out[b.Category] = append(out[b.Category], Item{Title: b.Title, Author: b.Author, Category: b.Category})
	}
	return out
}

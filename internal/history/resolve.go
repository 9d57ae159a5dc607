package history

import (
	"fmt"
	"strconv"
	"strings"
)

// maxListedMatches bounds how many candidates an ambiguity error names
const maxListedMatches = 3

// Resolve finds the conversation named by ref. See ListAliases for the
// accepted forms. Numbers and aliases count from the most recently
// updated conversation.
func Resolve(store Store, ref string) (*Conversation, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("empty reference")
	}

	convs, err := store.ListConversations()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if len(convs) == 0 {
		return nil, fmt.Errorf("no conversations found")
	}

	switch strings.ToLower(ref) {
	case "@last", "@latest":
		return convs[0], nil
	case "@first", "@oldest":
		return convs[len(convs)-1], nil
	}

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(convs) {
			return nil, fmt.Errorf("index %d out of range (1-%d)", n, len(convs))
		}
		return convs[n-1], nil
	}

	if strings.HasPrefix(ref, "conv-") {
		return pick(ref, filter(convs, func(c *Conversation) bool {
			return strings.HasPrefix(c.ID, ref)
		}), notFound(ref))
	}

	// An exact title wins over partial matches
	exact := filter(convs, func(c *Conversation) bool {
		return strings.EqualFold(c.Title, ref)
	})
	if len(exact) == 1 {
		return exact[0], nil
	}

	words := strings.Fields(strings.ToLower(ref))
	return pick(ref, filter(convs, func(c *Conversation) bool {
		title := strings.ToLower(c.Title)
		for _, w := range words {
			if !strings.Contains(title, w) {
				return false
			}
		}
		return true
	}), fmt.Errorf("no conversation matching '%s'", ref))
}

// ResolveID is Resolve for callers that only need the ID
func ResolveID(store Store, ref string) (string, error) {
	conv, err := Resolve(store, ref)
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

func filter(convs []*Conversation, keep func(*Conversation) bool) []*Conversation {
	var out []*Conversation
	for _, c := range convs {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// pick returns the single match, none if there is none, or an error
// naming the first few candidates.
func pick(ref string, matches []*Conversation, none error) (*Conversation, error) {
	switch len(matches) {
	case 0:
		return nil, none
	case 1:
		return matches[0], nil
	}

	var names []string
	for _, c := range matches[:min(len(matches), maxListedMatches)] {
		names = append(names, fmt.Sprintf("%s (%q)", c.ID, c.Title))
	}
	if extra := len(matches) - maxListedMatches; extra > 0 {
		names = append(names, fmt.Sprintf("and %d more", extra))
	}
	return nil, fmt.Errorf("multiple conversations match '%s': %s", ref, strings.Join(names, ", "))
}

// ListAliases describes the references Resolve accepts
func ListAliases() string {
	return `Conversation references:
  @last, @latest   Most recently updated conversation
  @first, @oldest  Least recently updated conversation
  1, 2, 3          Position in "history list" (1 is the newest)
  conv-1a2b...     Full ID or a unique ID prefix
  words            Title containing every word (an exact title wins)`
}

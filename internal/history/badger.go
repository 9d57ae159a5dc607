package history

import (
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const convPrefix = "conv/"

// BadgerStore keeps conversations in a BadgerDB database, one
// msgpack-encoded value per conversation.
type BadgerStore struct {
	db *badger.DB
}

// Ensure BadgerStore implements Store
var _ Store = (*BadgerStore)(nil)

// BadgerOptions configures the BadgerDB store
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless
	// InMemory is set.
	Dir string

	// InMemory runs BadgerDB without disk persistence
	InMemory bool

	// Logger receives badger warnings and errors. Nil discards them.
	Logger *slog.Logger
}

// NewBadgerStore opens a BadgerDB-backed store
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("history: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{opts.Logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// CreateConversation creates a new conversation
func (s *BadgerStore) CreateConversation(model string) (*Conversation, error) {
	conv := newConversation(model)
	err := s.db.Update(func(txn *badger.Txn) error {
		return putConversation(txn, conv)
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID
func (s *BadgerStore) GetConversation(id string) (*Conversation, error) {
	var conv *Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		conv, err = getConversation(txn, id)
		return err
	})
	return conv, err
}

// ListConversations returns all conversations, sorted by most recent
func (s *BadgerStore) ListConversations() ([]*Conversation, error) {
	var conversations []*Conversation
	prefix := []byte(convPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var conv Conversation
			if err := msgpack.Unmarshal(val, &conv); err != nil {
				continue // Skip malformed entries
			}
			conversations = append(conversations, &conv)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	sortByUpdated(conversations)
	return conversations, nil
}

// AddMessage appends a message to a conversation
func (s *BadgerStore) AddMessage(id string, msg Message) error {
	return s.db.Update(func(txn *badger.Txn) error {
		conv, err := getConversation(txn, id)
		if err != nil {
			return err
		}
		appendMessage(conv, msg)
		return putConversation(txn, conv)
	})
}

// UpdateTitle updates the title of a conversation
func (s *BadgerStore) UpdateTitle(id, title string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		conv, err := getConversation(txn, id)
		if err != nil {
			return err
		}
		conv.Title = title
		return putConversation(txn, conv)
	})
}

// DeleteConversation removes a conversation
func (s *BadgerStore) DeleteConversation(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(convKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound(id)
			}
			return err
		}
		return txn.Delete(convKey(id))
	})
}

// ClearAll deletes all conversations
func (s *BadgerStore) ClearAll() error {
	if err := s.db.DropPrefix([]byte(convPrefix)); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func convKey(id string) []byte {
	return []byte(convPrefix + id)
}

func getConversation(txn *badger.Txn, id string) (*Conversation, error) {
	item, err := txn.Get(convKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}

	var conv Conversation
	if err := msgpack.Unmarshal(val, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation: %w", err)
	}
	return &conv, nil
}

func putConversation(txn *badger.Txn, conv *Conversation) error {
	data, err := msgpack.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := txn.Set(convKey(conv.ID), data); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	return nil
}

// badgerLogger forwards badger warnings and errors to slog and drops the
// rest.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{}) {
	if b.l != nil {
		b.l.Error(fmt.Sprintf("badger: "+f, v...))
	}
}

func (b badgerLogger) Warningf(f string, v ...interface{}) {
	if b.l != nil {
		b.l.Warn(fmt.Sprintf("badger: "+f, v...))
	}
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}

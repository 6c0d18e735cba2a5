package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/rozeluxe01/101505276-lab-test1-chat-app/internal/chat"
)

// MessageStore persists group and private messages in BadgerDB.
//
// Keys embed a 19-digit zero-padded nanosecond timestamp so a prefix scan
// returns records in chronological order, with the record uuid as a collision
// disambiguator for same-nanosecond writes:
//
//	group:   g:{room}:{timestamp}:{uuid}
//	private: p:{userA}|{userB}:{timestamp}:{uuid}
//
// The private prefix orders the two usernames lexicographically so both
// directions of a conversation share one key range.
type MessageStore struct {
	db  *badger.DB
	log *slog.Logger
}

// NewMessageStore wraps an open Badger handle.
func NewMessageStore(db *badger.DB, log *slog.Logger) *MessageStore {
	return &MessageStore{db: db, log: log}
}

// SaveGroupMessage assigns an id and timestamp, persists the record, and
// returns it for delivery.
func (s *MessageStore) SaveGroupMessage(room, fromUser, text string) (chat.StoredMessage, error) {
	msg := chat.StoredMessage{
		ID:       uuid.NewString(),
		Room:     room,
		FromUser: fromUser,
		Message:  text,
		SentAt:   time.Now().UTC(),
	}
	key := fmt.Sprintf("g:%s:%019d:%s", room, msg.SentAt.UnixNano(), msg.ID)
	if err := s.put(key, msg); err != nil {
		return chat.StoredMessage{}, err
	}
	return msg, nil
}

// SavePrivateMessage assigns an id and timestamp, persists the record, and
// returns it for delivery to sender and (if online) recipient.
func (s *MessageStore) SavePrivateMessage(fromUser, toUser, text string) (chat.StoredMessage, error) {
	msg := chat.StoredMessage{
		ID:       uuid.NewString(),
		FromUser: fromUser,
		ToUser:   toUser,
		Message:  text,
		SentAt:   time.Now().UTC(),
	}
	key := fmt.Sprintf("p:%s:%019d:%s", conversationKey(fromUser, toUser), msg.SentAt.UnixNano(), msg.ID)
	if err := s.put(key, msg); err != nil {
		return chat.StoredMessage{}, err
	}
	return msg, nil
}

// GroupHistory returns all stored messages for room, oldest first.
func (s *MessageStore) GroupHistory(room string) ([]chat.StoredMessage, error) {
	return s.scan(fmt.Sprintf("g:%s:", room))
}

// PrivateHistory returns the conversation between two users, oldest first.
// The argument order does not matter.
func (s *MessageStore) PrivateHistory(userA, userB string) ([]chat.StoredMessage, error) {
	return s.scan(fmt.Sprintf("p:%s:", conversationKey(userA, userB)))
}

func (s *MessageStore) put(key string, msg chat.StoredMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *MessageStore) scan(prefixStr string) ([]chat.StoredMessage, error) {
	var messages []chat.StoredMessage
	prefix := []byte(prefixStr)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var msg chat.StoredMessage
				if err := json.Unmarshal(val, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// conversationKey joins the two usernames in lexicographic order. The '|'
// separator keeps the pair distinct from the timestamp segment.
func conversationKey(userA, userB string) string {
	if strings.Compare(userA, userB) > 0 {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}

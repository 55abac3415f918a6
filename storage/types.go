package storage

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
)

type Message struct {
	ID         string         `json:"id"`
	Offset     uint64         `json:"offset"`
	Event      string         `json:"event"`
	SenderAddr common.Address `json:"sender_addr"`
	Data       []byte         `json:"data"`
	Signature  []byte         `json:"signature"`
}

// Bytes returns the signable representation of the message: the fields the
// sender controls, without the log-assigned offset and the signature itself.
func (m *Message) Bytes() []byte {
	buf := bytes.NewBuffer(nil)
	buf.WriteString(m.ID)
	buf.WriteString(m.Event)
	buf.Write(m.SenderAddr.Bytes())
	buf.Write(m.Data)
	return buf.Bytes()
}

type Storage interface {
	Send(messages ...Message) error
	GetMessages(offset uint64) ([]Message, error)
	IgnoreMessages(messages []string, useOffset bool) error
	UnignoreMessages()
	Close() error
}

package amqp

import (
	"encoding/json"
	"time"
)

// StatementCreatedMessage announces a freshly persisted statement. It
// carries identifiers only; consumers fetch the full record from the store.
type StatementCreatedMessage struct {
	ID               int64     `json:"id"`
	BankName         string    `json:"bankName"`
	CardName         string    `json:"cardName"`
	TransactionCount int       `json:"transactionCount"`
	Timestamp        time.Time `json:"timestamp"`
}

func NewStatementCreatedMessage(id int64, bankName, cardName string, transactionCount int) *StatementCreatedMessage {
	return &StatementCreatedMessage{
		ID:               id,
		BankName:         bankName,
		CardName:         cardName,
		TransactionCount: transactionCount,
		Timestamp:        time.Now(),
	}
}

func (m *StatementCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func StatementCreatedMessageFromJSON(data []byte) (*StatementCreatedMessage, error) {
	var msg StatementCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

package requests

type ProposeActionForm struct {
	Target  string `json:"target" validate:"attr=target,min=3"`
	Value   string `json:"value" validate:"attr=value,min=1"`
	Payload []byte `json:"payload"`
}

type ActionIdForm struct {
	ActionID uint64 `query:"actionID" json:"actionID"`
}

type NotifyDepositForm struct {
	From  string `json:"from" validate:"attr=from,min=3"`
	Value string `json:"value" validate:"attr=value,min=1"`
}

type StateOffsetForm struct {
	Offset uint64 `json:"offset"`
}

type ResetStateForm struct {
	NewStateDBDSN      string   `json:"new_state_dbdsn,omitempty"`
	UseOffset          bool     `json:"use_offset"`
	KafkaConsumerGroup string   `json:"kafka_consumer_group"`
	Messages           []string `json:"messages,omitempty"`
}

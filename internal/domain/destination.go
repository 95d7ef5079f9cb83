package domain

// Destination is where deliveries for an entity go. The core never
// interprets it; only a Gateway does.
type Destination struct {
	ChannelID string `json:"channel_id" bson:"channel_id"`
	// MessageID optionally points at a prior message that is edited in place.
	MessageID string `json:"message_id,omitempty" bson:"message_id,omitempty"`
}

func (d Destination) IsZero() bool {
	return d.ChannelID == ""
}

// Payload is the rendered content handed to a Gateway.
type Payload struct {
	// Text is sent as a new message.
	Text string `json:"text"`
	// Edit replaces the content of Destination.MessageID, if both are set.
	Edit string `json:"edit,omitempty"`
}

func (p Payload) IsEmpty() bool {
	return p.Text == "" && p.Edit == ""
}

package store

// Chat is an archived dialog of one source.
type Chat struct {
	Source    string `db:"source"`
	ChatID    string `db:"chat_id"`
	Name      string `db:"name"`
	IsUser    bool   `db:"is_user"`
	UpdatedAt int64  `db:"updated_at"`
}

// Message is an archived chat message. Raw keeps the backend's own encoding
// when media has to be fetched later.
type Message struct {
	ID               int64  `db:"id"`
	Source           string `db:"source"`
	ChatID           string `db:"chat_id"`
	MsgID            string `db:"msg_id"`
	Timestamp        int64  `db:"timestamp"`
	Text             string `db:"text"`
	FromSelf         bool   `db:"from_self"`
	Forwarded        bool   `db:"forwarded"`
	FwdChatTitle     string `db:"fwd_chat_title"`
	FwdUsername      string `db:"fwd_username"`
	FwdFirstName     string `db:"fwd_first_name"`
	FwdLastName      string `db:"fwd_last_name"`
	MediaKind        string `db:"media_kind"`
	MediaURL         string `db:"media_url"`
	MediaTitle       string `db:"media_title"`
	MediaDisplayURL  string `db:"media_display_url"`
	MediaDescription string `db:"media_description"`
	MediaFileID      string `db:"media_file_id"`
	MediaFileName    string `db:"media_file_name"`
	MediaMimeType    string `db:"media_mime_type"`
	MediaTypeName    string `db:"media_type_name"`
	Pinned           bool   `db:"pinned"`
	Raw              []byte `db:"raw"`
	CreatedAt        int64  `db:"created_at"`
}

// MessageQuery selects archived messages of one chat.
type MessageQuery struct {
	Source string
	ChatID string
	// After keeps messages with a timestamp strictly greater than it.
	After      int64
	PinnedOnly bool
	// Limit caps the result at the oldest matching messages; 0 means no cap.
	// The last timestamp is never cut short, so a capped result may hold more
	// than Limit rows.
	Limit int
}

// Task is an entry of the local todo list. Tags are space separated.
type Task struct {
	ID        string `db:"id"`
	EventTS   int64  `db:"event_ts"`
	Heading   string `db:"heading"`
	Tags      string `db:"tags"`
	Body      string `db:"body"`
	Done      bool   `db:"done"`
	CreatedAt int64  `db:"created_at"`
}

// Emission records one record handed to a task store.
type Emission struct {
	ID        int64  `db:"id"`
	EventTS   int64  `db:"event_ts"`
	Sink      string `db:"sink"`
	Handle    string `db:"handle"`
	Heading   string `db:"heading"`
	EmittedAt int64  `db:"emitted_at"`
}

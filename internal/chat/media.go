package chat

// MediaKind tags the Media union.
type MediaKind string

const (
	MediaNone           MediaKind = ""
	MediaWebPage        MediaKind = "webpage"
	MediaWebPageEmpty   MediaKind = "webpage_empty"
	MediaWebPagePending MediaKind = "webpage_pending"
	MediaPhoto          MediaKind = "photo"
	MediaDocument       MediaKind = "document"
	MediaVenue          MediaKind = "venue"
	MediaUnknown        MediaKind = "unknown"
)

// Media is a closed tagged union over the attachments fwdtodo understands.
// Only the fields of the active Kind are meaningful. Backend media types
// outside this set arrive as MediaUnknown with TypeName set.
type Media struct {
	Kind MediaKind

	// web page
	URL         string
	Title       string
	DisplayURL  string
	Description string

	// photo, document
	FileID   string
	FileName string
	MimeType string

	// unknown
	TypeName string
}

// HasMedia reports whether m carries an attachment.
func (m Media) HasMedia() bool {
	return m.Kind != MediaNone
}

// KnownMediaKind reports whether k is one of the kinds declared above.
func KnownMediaKind(k MediaKind) bool {
	switch k {
	case MediaNone, MediaWebPage, MediaWebPageEmpty, MediaWebPagePending,
		MediaPhoto, MediaDocument, MediaVenue, MediaUnknown:
		return true
	}
	return false
}

package config

const (
	// TopicNoteReindex is the NSQ topic for targeted re-index requests. The block
	// relocator and the note-write tools publish here so the affected documents are
	// re-chunked immediately instead of waiting for the next watermark cycle.
	TopicNoteReindex = "note.reindex"
)

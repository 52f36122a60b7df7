package session

// Index is the part of the vector index a session owns.
type Index interface {
	CreateSession(sessionID string)
	DropSession(sessionID string)
	DeleteDocument(sessionID, documentID string) (int, error)
	ChunkCounts(sessionID string) (map[string]int, error)
}

package domain

// ChunkFilter narrows chunk lookups by metadata criteria.
// Criteria are AND-composed; zero values mean "no constraint".
type ChunkFilter struct {
	// PatientID restricts to a single patient.
	PatientID string

	// ArtifactID restricts to chunks of one source artifact.
	ArtifactID string

	// ArtifactType restricts to one artifact classification.
	ArtifactType string

	// Day restricts to one calendar day, as an ISO date string
	// ("2006-01-02") matching Chunk.Day().
	Day string
}

// Empty reports whether no criteria are set.
func (f ChunkFilter) Empty() bool {
	return f.PatientID == "" && f.ArtifactID == "" && f.ArtifactType == "" && f.Day == ""
}

// ParsedQuery is the pre-parsed output of the external query
// understanding collaborator. The retriever treats it as opaque
// input to embedding and filtering.
type ParsedQuery struct {
	// Text is the (possibly reformulated) query text to embed.
	Text string

	// Filter carries metadata constraints extracted from the query.
	Filter ChunkFilter
}

package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stamp orders document revisions. Revision is a Lamport-style counter that
// every writer advances past the highest revision it has seen; Writer is the
// device ID of the session that produced the revision and breaks ties.
type Stamp struct {
	Revision int64  `json:"revision"`
	Writer   string `json:"writer"`
}

// Less reports whether s orders strictly before o.
func (s Stamp) Less(o Stamp) bool {
	if s.Revision != o.Revision {
		return s.Revision < o.Revision
	}
	return s.Writer < o.Writer
}

// IsZero reports whether s is the stamp of a document nobody has written yet.
func (s Stamp) IsZero() bool {
	return s.Revision == 0 && s.Writer == ""
}

// Next returns the stamp a writer produces for its next local revision.
func (s Stamp) Next(writer string) Stamp {
	return Stamp{Revision: s.Revision + 1, Writer: writer}
}

// Envelope is what actually crosses the local and remote storage boundaries:
// the whole Document plus the stamp of the revision it represents.
type Envelope struct {
	Stamp     Stamp     `json:"stamp"`
	UpdatedAt time.Time `json:"updatedAt"`
	Document  Document  `json:"document"`
}

// DecodeEnvelope parses a stored envelope. A bare document blob (as written by
// releases that persisted only the Document) decodes with a zero stamp.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var head struct {
		Stamp     Stamp           `json:"stamp"`
		UpdatedAt time.Time       `json:"updatedAt"`
		Document  json.RawMessage `json:"document"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return Envelope{}, fmt.Errorf("domain.DecodeEnvelope: %w", err)
	}

	env := Envelope{Stamp: head.Stamp, UpdatedAt: head.UpdatedAt}
	payload := []byte(head.Document)
	if len(payload) == 0 || string(payload) == "null" {
		payload = b
	}
	if err := json.Unmarshal(payload, &env.Document); err != nil {
		return Envelope{}, fmt.Errorf("domain.DecodeEnvelope: document: %w", err)
	}
	return env, nil
}

// Status is the observable state of the remote path. Local saves are not
// reflected here.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Origin tags where a document change came from. Only local changes are ever
// written to the remote store.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// syncIDPattern accepts short human-copyable identities.
var syncIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,64}$`)

// NewSyncID generates a fresh sync identity such as "AM-3F9C01B2".
func NewSyncID() string {
	id := uuid.New()
	return "AM-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// NormalizeSyncID trims a pasted identity and validates its shape.
// Pairing is not authenticated; anything well-formed is accepted.
func NormalizeSyncID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if !syncIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidSyncID, raw)
	}
	return id, nil
}

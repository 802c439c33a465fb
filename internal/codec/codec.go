// Package codec turns a ticket into an editable text document and back,
// and computes the content fingerprint the review cache keys on.
package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"gopkg.in/yaml.v3"

	"github.com/groomkit/groom/internal/markup"
	"github.com/groomkit/groom/internal/models"
)

// ErrMalformedEdit marks an editable document that fails structural
// validation on deserialize. Callers must re-prompt rather than persist.
var ErrMalformedEdit = errors.New("malformed ticket document")

// Delimiter separates the document header from the body.
const Delimiter = "---"

// header is the structured top section of an editable ticket document.
type header struct {
	ID      string `yaml:"id"`
	Key     string `yaml:"key"`
	Self    string `yaml:"self,omitempty"`
	Summary string `yaml:"summary"`
	Created string `yaml:"created,omitempty"`
	Updated string `yaml:"updated,omitempty"`
	Creator string `yaml:"creator,omitempty"`
}

// Edited is the result of deserializing an edited document: the header
// metadata plus the body converted back to tracker-native markup.
type Edited struct {
	ID          string
	Key         string
	Summary     string
	Description string
}

// Serialize renders a ticket as a YAML header, a delimiter line, and the
// description converted from tracker markup to markdown. The output is a
// pure function of the ticket, so it doubles as the fingerprint input.
func Serialize(t models.Ticket) string {
	h := header{
		ID:      t.ID,
		Key:     t.Key,
		Self:    t.Self,
		Summary: t.Summary,
		Creator: t.Creator,
	}
	if !t.Created.IsZero() {
		h.Created = t.Created.UTC().Format(time.RFC3339)
	}
	if !t.Updated.IsZero() {
		h.Updated = t.Updated.UTC().Format(time.RFC3339)
	}

	head, err := yaml.Marshal(h)
	if err != nil {
		// header is a flat struct of strings; Marshal cannot fail on it
		panic(fmt.Sprintf("marshal ticket header: %v", err))
	}

	var sb strings.Builder
	sb.Write(head)
	sb.WriteString(Delimiter)
	sb.WriteString("\n")
	sb.WriteString(markup.ToMarkdown(t.Description))
	sb.WriteString("\n")
	return sb.String()
}

// Deserialize parses an edited document back into metadata and a
// tracker-native description. Structural problems return ErrMalformedEdit.
func Deserialize(doc string) (*Edited, error) {
	head, body, found := strings.Cut(doc, "\n"+Delimiter+"\n")
	if !found {
		return nil, fmt.Errorf("%w: missing %q delimiter", ErrMalformedEdit, Delimiter)
	}

	var h header
	if err := yaml.Unmarshal([]byte(head), &h); err != nil {
		return nil, fmt.Errorf("%w: parse header: %v", ErrMalformedEdit, err)
	}
	if h.ID == "" {
		return nil, fmt.Errorf("%w: header is missing required field %q", ErrMalformedEdit, "id")
	}
	if h.Key == "" {
		return nil, fmt.Errorf("%w: header is missing required field %q", ErrMalformedEdit, "key")
	}
	if h.Summary == "" {
		return nil, fmt.Errorf("%w: header is missing required field %q", ErrMalformedEdit, "summary")
	}

	return &Edited{
		ID:          h.ID,
		Key:         h.Key,
		Summary:     h.Summary,
		Description: markup.ToWiki(strings.TrimSuffix(body, "\n")),
	}, nil
}

// Checksum fingerprints a ticket's serialized content together with the
// model identifier. SHA-256 keeps the cache-validity token collision
// resistant.
func Checksum(t models.Ticket, model string) string {
	content := sha256.Sum256([]byte(Serialize(t)))
	combined := sha256.Sum256([]byte(hex.EncodeToString(content[:]) + "\n" + model))
	return hex.EncodeToString(combined[:])
}

// Diff returns a line-level patch between the serialized forms of two
// tickets, and whether they differ at all.
func Diff(a, b models.Ticket) (string, bool) {
	docA, docB := Serialize(a), Serialize(b)
	if docA == docB {
		return "", false
	}

	dmp := diffmatchpatch.New()
	charsA, charsB, lines := dmp.DiffLinesToChars(docA, docB)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(charsA, charsB, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String(), true
}

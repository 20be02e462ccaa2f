package df

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// MarshalJSON encodes a row as template JSON: {"blocks":[...]}.
func (r *Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTemplate{Blocks: toWireRow(r)})
}

// UnmarshalJSON decodes template JSON into r.
func (r *Row) UnmarshalJSON(data []byte) error {
	var t wireTemplate
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	decoded, err := fromWireRow(t.Blocks)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}

// EncodeTemplate returns the gzip+base64 template code for a row, the form
// accepted by the DiamondFire client.
func EncodeTemplate(r *Row) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("df: encode template: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("df: compress template: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("df: compress template: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodeTemplates encodes every row.
func EncodeTemplates(rows []*Row) ([]string, error) {
	codes := make([]string, len(rows))
	for i, r := range rows {
		code, err := EncodeTemplate(r)
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}

// DecodeTemplate reverses EncodeTemplate.
func DecodeTemplate(code string) (*Row, error) {
	raw, err := base64.StdEncoding.DecodeString(code)
	if err != nil {
		return nil, fmt.Errorf("df: decode template: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("df: decompress template: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("df: decompress template: %w", err)
	}
	var r Row
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("df: parse template: %w", err)
	}
	return &r, nil
}

// ---------------------------------------------------------------------------
// CBOR snapshot
// ---------------------------------------------------------------------------

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("df: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is the build artifact: every compiled row of a project.
type Snapshot struct {
	Name string        `json:"name"`
	Rows [][]wireBlock `json:"rows"`
}

// NewSnapshot captures rows under a project name.
func NewSnapshot(name string, rows []*Row) *Snapshot {
	s := &Snapshot{Name: name, Rows: make([][]wireBlock, len(rows))}
	for i, r := range rows {
		s.Rows[i] = toWireRow(r)
	}
	return s
}

// Decode rebuilds the rows held by the snapshot.
func (s *Snapshot) Decode() ([]*Row, error) {
	rows := make([]*Row, len(s.Rows))
	for i, blocks := range s.Rows {
		r, err := fromWireRow(blocks)
		if err != nil {
			return nil, fmt.Errorf("df: row %d: %w", i, err)
		}
		rows[i] = r
	}
	return rows, nil
}

// MarshalSnapshot serializes a Snapshot to canonical CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("df: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// Fingerprint returns the hex SHA-256 of the canonical snapshot of rows.
func Fingerprint(rows []*Row) (string, error) {
	data, err := MarshalSnapshot(NewSnapshot("", rows))
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

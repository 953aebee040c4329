package types

import "encoding/json"

// ContentPart is one element of a TOOL_RESULT's content sequence. At
// least a text part is always present; other part types are opaque to
// the Core (they mirror the wire shape prevailing tool-using
// model APIs already use).
type ContentPart interface {
	PartType() string
}

// TextPart is plain text content.
type TextPart struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

func (p *TextPart) PartType() string { return "text" }

// FilePart is a file attachment produced by a tool (e.g. a read diff, a
// generated artifact).
type FilePart struct {
	Type      string `json:"type"` // always "file"
	Filename  string `json:"filename"`
	MediaType string `json:"mediaType"`
	URL       string `json:"url"`
}

func (p *FilePart) PartType() string { return "file" }

// OpaquePart carries a part type the Core does not interpret; it is
// preserved verbatim on replay.
type OpaquePart struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (p *OpaquePart) PartType() string { return p.Type }

type rawPart struct {
	Type string `json:"type"`
}

// UnmarshalContentPart deserializes one content part by its discriminant
// "type" field.
func UnmarshalContentPart(data []byte) (ContentPart, error) {
	var raw rawPart
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	switch raw.Type {
	case "text":
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "file":
		var p FilePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return &OpaquePart{Type: raw.Type, Data: data}, nil
	}
}

// UnmarshalContentParts deserializes a JSON array of content parts.
func UnmarshalContentParts(data []byte) ([]ContentPart, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	parts := make([]ContentPart, 0, len(raw))
	for _, r := range raw {
		p, err := UnmarshalContentPart(r)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

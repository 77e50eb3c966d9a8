package message

import (
	wmmessage "github.com/ThreeDotsLabs/watermill/message"
)

// Descriptor carries transport metadata of one delivered message: headers,
// the transport message identifier and an optional stream position.
type Descriptor struct {
	Headers   wmmessage.Metadata
	MessageID string
	Position  uint64
}

// Header returns the named header or an empty string.
func (d Descriptor) Header(name string) string {
	if d.Headers == nil {
		return ""
	}
	return d.Headers.Get(name)
}

// Envelope is one (payload, descriptor) pair as accepted by the pipeline.
// Envelopes are treated as immutable: mutators return replacements, nothing
// modifies an envelope in place.
type Envelope struct {
	Payload    any
	Descriptor Descriptor
}

// NewEnvelope builds an envelope from a domain payload and its transport metadata.
func NewEnvelope(payload any, headers wmmessage.Metadata, messageID string) Envelope {
	return Envelope{
		Payload: payload,
		Descriptor: Descriptor{
			Headers:   CopyMetadata(nil, headers),
			MessageID: messageID,
		},
	}
}

// WithPayload returns a copy of the envelope carrying a replacement payload.
func (e Envelope) WithPayload(payload any) Envelope {
	e.Payload = payload
	return e
}

// WithHeader returns a copy of the envelope with one header set.
// The original header map is left untouched.
func (e Envelope) WithHeader(name, value string) Envelope {
	headers := CopyMetadata(nil, e.Descriptor.Headers)
	if headers == nil {
		headers = make(wmmessage.Metadata, 1)
	}
	headers.Set(name, value)
	e.Descriptor.Headers = headers
	return e
}

// FromMessage converts a Watermill message into an envelope. The payload stays
// opaque bytes; deserialization is the surrounding integration's concern.
func FromMessage(msg *wmmessage.Message) Envelope {
	if msg == nil {
		return Envelope{}
	}

	return Envelope{
		Payload: []byte(msg.Payload),
		Descriptor: Descriptor{
			Headers:   CopyMetadata(nil, msg.Metadata),
			MessageID: msg.UUID,
		},
	}
}

// CopyMetadata duplicates metadata map into destination map.
func CopyMetadata(dst, src wmmessage.Metadata) wmmessage.Metadata {
	if src == nil {
		return dst
	}

	if dst == nil {
		dst = make(wmmessage.Metadata, len(src))
	}

	for k, v := range src {
		dst.Set(k, v)
	}

	return dst
}

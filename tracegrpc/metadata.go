package tracegrpc

import (
	"errors"

	"google.golang.org/grpc/metadata"
)

var errSharedMetadata = errors.New("metadata belongs to the caller")

// outgoingMetadata refuses writes until forked so the caller's metadata is
// never modified.
type outgoingMetadata struct {
	md    metadata.MD
	owned bool
}

func setMetadata(m outgoingMetadata, key, value string) error {
	if !m.owned {
		return errSharedMetadata
	}
	m.md.Set(key, value)
	return nil
}

func forkMetadata(m outgoingMetadata) outgoingMetadata {
	md := m.md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	return outgoingMetadata{md: md, owned: true}
}

// metadataReader is an opentracing.TextMapReader over incoming metadata.
type metadataReader metadata.MD

func (r metadataReader) ForeachKey(handler func(key, val string) error) error {
	for key, values := range r {
		for _, value := range values {
			if err := handler(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

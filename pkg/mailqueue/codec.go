package mailqueue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	messageDocumentKind = "mailqueue.message"
	failureDocumentKind = "mailqueue.failure"
	documentVersion     = 1
)

type messageDocument struct {
	Kind     string   `json:"kind"`
	Version  int      `json:"version"`
	Envelope Envelope `json:"envelope"`
	Raw      []byte   `json:"raw"`
}

type failureDocument struct {
	Kind    string `json:"kind"`
	Version int    `json:"version"`
	TransportFailure
}

// MarshalMessage serializes a message into the queue file format.
func MarshalMessage(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(messageDocument{
		Kind:     messageDocumentKind,
		Version:  documentVersion,
		Envelope: m.Envelope,
		Raw:      m.Raw,
	})
}

// UnmarshalMessage restores a message serialized by MarshalMessage.
// location names the source of data in the returned error.
func UnmarshalMessage(location string, data []byte) (Message, error) {
	var doc messageDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Message{}, &InvalidPayloadError{Location: location, Kind: PayloadMessage, Err: err}
	}
	if doc.Kind != messageDocumentKind || doc.Version != documentVersion {
		return Message{}, &InvalidPayloadError{
			Location: location,
			Kind:     PayloadMessage,
			Err:      fmt.Errorf("unexpected document %q version %d", doc.Kind, doc.Version),
		}
	}

	m := Message{Envelope: doc.Envelope, Raw: doc.Raw}
	if err := m.Validate(); err != nil {
		return Message{}, &InvalidPayloadError{Location: location, Kind: PayloadMessage, Err: err}
	}
	return m, nil
}

// MarshalFailure serializes a failure record.
func MarshalFailure(f TransportFailure) ([]byte, error) {
	return json.Marshal(failureDocument{
		Kind:             failureDocumentKind,
		Version:          documentVersion,
		TransportFailure: f,
	})
}

// UnmarshalFailure restores a failure record serialized by MarshalFailure.
func UnmarshalFailure(location string, data []byte) (TransportFailure, error) {
	var doc failureDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return TransportFailure{}, &InvalidPayloadError{Location: location, Kind: PayloadFailure, Err: err}
	}
	if doc.Kind != failureDocumentKind || doc.Version != documentVersion {
		return TransportFailure{}, &InvalidPayloadError{
			Location: location,
			Kind:     PayloadFailure,
			Err:      fmt.Errorf("unexpected document %q version %d", doc.Kind, doc.Version),
		}
	}
	if doc.Exception == "" || doc.Date.IsZero() {
		return TransportFailure{}, &InvalidPayloadError{
			Location: location,
			Kind:     PayloadFailure,
			Err:      fmt.Errorf("exception kind and date are required"),
		}
	}
	return doc.TransportFailure, nil
}

// writeFileAtomic writes data to a temp file next to path, syncs it and
// renames it into place. Readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + tmpSuffix

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

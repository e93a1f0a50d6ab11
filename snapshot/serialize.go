// Copyright 2025 Exo Tech
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package snapshot

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/exo-tech-xyz/gov-v1/merkle"
)

// DefaultMaxSnapshotBytes bounds the decompressed size of a snapshot
// payload to protect against zip-bomb style inputs
const DefaultMaxSnapshotBytes = 256 << 20 // 256 MiB

var ErrSnapshotTooLarge = errors.New("snapshot exceeds decompressed size limit")

// Serialize returns the canonical CBOR encoding of the snapshot. The
// SHA-256 of these bytes is the snapshot's content hash.
func (s *Snapshot) Serialize() ([]byte, error) {
	return cbor.Marshal(s)
}

// Deserialize decodes a snapshot from its canonical CBOR encoding
func Deserialize(data []byte) (*Snapshot, error) {
	var ret Snapshot
	if err := cbor.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &ret, nil
}

// ContentHash hashes serialized snapshot bytes. The result is the
// content-hash half of a ballot and is outside both Merkle trees.
func ContentHash(serialized []byte) merkle.Hash {
	return merkle.Hash(sha256.Sum256(serialized))
}

// Write writes the serialized snapshot to w, gzip-compressed if compress
// is set
func (s *Snapshot) Write(w io.Writer, compress bool) error {
	data, err := s.Serialize()
	if err != nil {
		return err
	}
	if !compress {
		_, err = w.Write(data)
		return err
	}
	gzWriter := gzip.NewWriter(w)
	if _, err := gzWriter.Write(data); err != nil {
		return err
	}
	return gzWriter.Close()
}

// Read reads a snapshot written by Write. maxBytes bounds the decoded
// payload size; zero or negative selects DefaultMaxSnapshotBytes.
func Read(r io.Reader, compressed bool, maxBytes int64) (*Snapshot, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSnapshotBytes
	}
	if compressed {
		gzReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gzReader.Close()
		r = gzReader
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrSnapshotTooLarge
	}
	return Deserialize(data)
}

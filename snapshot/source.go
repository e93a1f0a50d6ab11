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
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
)

// FileSource reads a delegation dump produced by an external ledger
// extraction step. Dumps are CBOR-encoded DelegationSet records, gzipped
// when the path carries a .gz suffix.
type FileSource struct {
	path     string
	maxBytes int64
}

func NewFileSource(path string) *FileSource {
	return &FileSource{
		path:     path,
		maxBytes: DefaultMaxSnapshotBytes,
	}
}

func (f *FileSource) DelegationSet(
	ctx context.Context,
) (*DelegationSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open delegation dump: %w", err)
	}
	defer file.Close()
	var reader io.Reader = file
	if strings.HasSuffix(f.path, ".gz") {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}
	data, err := io.ReadAll(io.LimitReader(reader, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read delegation dump: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrSnapshotTooLarge
	}
	var ret DelegationSet
	if err := cbor.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("decode delegation dump: %w", err)
	}
	return &ret, nil
}

// WriteDelegationSet writes a delegation dump in the format FileSource
// reads. Used by extraction tooling and tests.
func WriteDelegationSet(
	w io.Writer,
	set *DelegationSet,
	compress bool,
) error {
	data, err := cbor.Marshal(set)
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

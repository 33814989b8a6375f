// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package codec

import (
	"bytes"
	"context"
	"io"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/pierrec/lz4"
)

// Compress wraps data in an lz4 frame.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, moerr.ConvertGoError(context.Background(), err)
	}
	if err := w.Close(); err != nil {
		return nil, moerr.ConvertGoError(context.Background(), err)
	}
	return buf.Bytes(), nil
}

func Decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, moerr.NewInvalidInput(context.Background(), "bad lz4 frame: %v", err)
	}
	return out, nil
}

// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package archive

import (
	"bufio"
	"fmt"
	"os"

	"github.com/linkedin/goavro/v2"
)

// recordSchema is the Avro schema every archive file is expected to
// use: an opaque key/value pair per record, the same shape a log
// consumer delivers to ProcessOneFunc.
const recordSchema = `{
  "type": "record",
  "name": "LogRecord",
  "fields": [
    {"name": "key", "type": "bytes"},
    {"name": "value", "type": "bytes"}
  ]
}`

// avroFile wraps one archive file downloaded to a local temp copy, read
// record-by-record through goavro's OCF reader. The temp copy exists
// only because a byte slice cannot be handed to bufio.Reader-backed
// OCF decoding without one; it is removed as soon as the file is
// exhausted or closed early.
type avroFile struct {
	tmpPath string
	f       *os.File
	reader  *goavro.OCFReader
}

func openAvroFile(data []byte) (*avroFile, error) {
	tmp, err := os.CreateTemp("", "respkv-archive-*.avro")
	if err != nil {
		return nil, fmt.Errorf("archive: create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("archive: write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("archive: seek temp file: %w", err)
	}

	reader, err := goavro.NewOCFReader(bufio.NewReader(tmp))
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("archive: open OCF reader: %w", err)
	}

	return &avroFile{tmpPath: tmp.Name(), f: tmp, reader: reader}, nil
}

// next returns the next record, or ok=false once the file is exhausted.
func (a *avroFile) next() (map[string]interface{}, bool, error) {
	if !a.reader.Scan() {
		return nil, false, nil
	}
	rec, err := a.reader.Read()
	if err != nil {
		return nil, false, fmt.Errorf("archive: read record: %w", err)
	}
	m, ok := rec.(map[string]interface{})
	if !ok {
		return nil, false, fmt.Errorf("archive: unexpected avro record type %T", rec)
	}
	return m, true, nil
}

func (a *avroFile) close() {
	a.f.Close()
	os.Remove(a.tmpPath)
}

// encodeRecords is a test/tooling helper producing an OCF-encoded
// archive file body for recordSchema records.
func encodeRecords(records []map[string]interface{}) ([]byte, error) {
	codec, err := goavro.NewCodec(recordSchema)
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp("", "respkv-archive-encode-*.avro")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{W: tmp, Codec: codec})
	if err != nil {
		return nil, err
	}
	items := make([]interface{}, len(records))
	for i, r := range records {
		items[i] = r
	}
	if err := writer.Append(items); err != nil {
		return nil, err
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return nil, err
	}
	buf := make([]byte, 0)
	chunk := make([]byte, 4096)
	for {
		n, err := tmp.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}
	return buf, nil
}

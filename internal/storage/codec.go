package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/hyperjump/niteru/internal/models"
)

const recordFormatVersion = 1

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

// bytesToFloat32Slice decodes little-endian float32 values; a trailing partial value is dropped.
func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// encodeRecord writes rec as: version (1), seq (8), inserted_at unix nanos (8),
// then length-prefixed key, schema, source_ref, metadata JSON and vector bytes.
func encodeRecord(rec *models.ImageRecord) ([]byte, error) {
	var meta []byte
	if len(rec.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(rec.Metadata); err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
	}
	var buf bytes.Buffer
	buf.WriteByte(recordFormatVersion)
	_ = binary.Write(&buf, binary.LittleEndian, rec.Seq)
	_ = binary.Write(&buf, binary.LittleEndian, rec.InsertedAt.UnixNano())
	for _, field := range [][]byte{
		[]byte(rec.Key), []byte(rec.SchemaID), []byte(rec.SourceRef), meta, float32SliceToBytes(rec.Vector),
	} {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(field)))
		buf.Write(field)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*models.ImageRecord, error) {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != recordFormatVersion {
		return nil, fmt.Errorf("unsupported record format %d", version)
	}
	rec := &models.ImageRecord{}
	var nanos int64
	if err := binary.Read(r, binary.LittleEndian, &rec.Seq); err != nil {
		return nil, fmt.Errorf("read seq: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &nanos); err != nil {
		return nil, fmt.Errorf("read inserted_at: %w", err)
	}
	rec.InsertedAt = time.Unix(0, nanos).UTC()

	fields := make([][]byte, 5)
	for i := range fields {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read field %d length: %w", i, err)
		}
		if int64(n) > int64(r.Len()) {
			return nil, fmt.Errorf("field %d length %d exceeds remaining %d bytes", i, n, r.Len())
		}
		fields[i] = make([]byte, n)
		if _, err := io.ReadFull(r, fields[i]); err != nil {
			return nil, fmt.Errorf("read field %d: %w", i, err)
		}
	}
	rec.Key = string(fields[0])
	rec.SchemaID = string(fields[1])
	rec.SourceRef = string(fields[2])
	if len(fields[3]) > 0 {
		if err := json.Unmarshal(fields[3], &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	rec.Vector = bytesToFloat32Slice(fields[4])
	return rec, nil
}

func cloneRecord(rec *models.ImageRecord) *models.ImageRecord {
	cp := *rec
	cp.Vector = append([]float32(nil), rec.Vector...)
	if rec.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(rec.Metadata))
		for k, v := range rec.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

package vector

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const snapshotVersion = 1

// ErrBadSnapshot is returned when snapshot bytes cannot be decoded into the receiving index.
var ErrBadSnapshot = errors.New("vector: bad snapshot")

type snapshotHeader struct {
	Type       string
	Version    int
	Dimensions int
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// encodeSnapshot gob-encodes a header followed by payload and compresses the result with zstd.
func encodeSnapshot(typ string, dims int, payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(snapshotHeader{Type: typ, Version: snapshotVersion, Dimensions: dims}); err != nil {
		return nil, fmt.Errorf("encode snapshot header: %w", err)
	}
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	encoder, _, err := codecs()
	if err != nil {
		return nil, fmt.Errorf("init zstd: %w", err)
	}
	return encoder.EncodeAll(buf.Bytes(), nil), nil
}

// decodeSnapshot reverses encodeSnapshot, checking that the snapshot matches typ and dims.
func decodeSnapshot(data []byte, typ string, dims int, payload any) error {
	_, decoder, err := codecs()
	if err != nil {
		return fmt.Errorf("init zstd: %w", err)
	}
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("%w: decompress: %v", ErrBadSnapshot, err)
	}
	dec := gob.NewDecoder(bytes.NewReader(raw))
	var hdr snapshotHeader
	if err := dec.Decode(&hdr); err != nil {
		return fmt.Errorf("%w: header: %v", ErrBadSnapshot, err)
	}
	if hdr.Type != typ || hdr.Version != snapshotVersion {
		return fmt.Errorf("%w: got %s v%d, want %s v%d", ErrBadSnapshot, hdr.Type, hdr.Version, typ, snapshotVersion)
	}
	if hdr.Dimensions != dims {
		return &DimensionMismatchError{Expected: dims, Actual: hdr.Dimensions}
	}
	if err := dec.Decode(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	return nil
}

// hnswSnapshot is the serialized form of an HNSW graph. Fields are exported for gob.
type hnswSnapshot struct {
	Config    HNSWConfig
	Entry     int32
	TopLevel  int
	IDs       []int64
	Vectors   [][]float32
	Neighbors [][][]int32
}

// MarshalBinary encodes the built graph. The configuration is included so a restored
// index keeps the parameters it was built with.
func (h *HNSWIndex) MarshalBinary() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.graph == nil {
		return nil, ErrNotBuilt
	}
	g := h.graph
	snap := hnswSnapshot{
		Config:    h.cfg,
		Entry:     g.entry,
		TopLevel:  g.topLevel,
		IDs:       make([]int64, len(g.nodes)),
		Vectors:   make([][]float32, len(g.nodes)),
		Neighbors: make([][][]int32, len(g.nodes)),
	}
	for i, n := range g.nodes {
		snap.IDs[i] = n.id
		snap.Vectors[i] = n.vector
		snap.Neighbors[i] = n.neighbors
	}
	return encodeSnapshot(h.Type(), h.dims, &snap)
}

// UnmarshalBinary replaces the index contents with a snapshot produced by MarshalBinary.
func (h *HNSWIndex) UnmarshalBinary(data []byte) error {
	var snap hnswSnapshot
	if err := decodeSnapshot(data, h.Type(), h.dims, &snap); err != nil {
		return err
	}
	n := len(snap.IDs)
	if len(snap.Vectors) != n || len(snap.Neighbors) != n || int(snap.Entry) >= n || (n > 0 && snap.Entry < 0) {
		return fmt.Errorf("%w: inconsistent graph", ErrBadSnapshot)
	}
	g := &hnswGraph{nodes: make([]hnswNode, n), entry: snap.Entry, topLevel: snap.TopLevel}
	if n == 0 {
		g.entry = -1
	}
	for i := range g.nodes {
		if len(snap.Vectors[i]) != h.dims {
			return &DimensionMismatchError{Expected: h.dims, Actual: len(snap.Vectors[i]), ID: snap.IDs[i]}
		}
		for l, layer := range snap.Neighbors[i] {
			for _, nb := range layer {
				if nb < 0 || int(nb) >= n {
					return fmt.Errorf("%w: neighbour out of range", ErrBadSnapshot)
				}
				if len(snap.Neighbors[nb]) <= l {
					return fmt.Errorf("%w: neighbour %d missing layer %d", ErrBadSnapshot, nb, l)
				}
			}
		}
		g.nodes[i] = hnswNode{id: snap.IDs[i], vector: snap.Vectors[i], neighbors: snap.Neighbors[i]}
	}
	if n > 0 && len(g.nodes[g.entry].neighbors) <= g.topLevel {
		return fmt.Errorf("%w: entry point below top level", ErrBadSnapshot)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.cfg = snap.Config.withDefaults()
	h.graph = g
	return nil
}

package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/khalecl/supply-chain-idle/internal/engine"
)

// SnapshotExt is the file extension used for exported snapshots.
const SnapshotExt = ".scidle.zst"

// SnapshotHeader is the first line of a snapshot file. It can be read
// without decoding the save body.
type SnapshotHeader struct {
	ID         string  `json:"id"`
	Version    int     `json:"version"`
	SavedAt    string  `json:"saved_at"`
	GameTimeMS float64 `json:"game_time_ms"`
	Money      float64 `json:"money"`
	Prestige   int     `json:"prestige"`
}

// WriteSnapshot compresses a header line followed by the encoded save.
func WriteSnapshot(w io.Writer, s engine.Snapshot) (SnapshotHeader, error) {
	body, err := Encode(s)
	if err != nil {
		return SnapshotHeader{}, err
	}
	hdr := SnapshotHeader{
		ID:         uuid.NewString(),
		Version:    CurrentVersion,
		SavedAt:    time.Now().UTC().Format(time.RFC3339),
		GameTimeMS: ms(s.GameTime),
		Money:      s.Money,
		Prestige:   s.PrestigeLevel,
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return SnapshotHeader{}, err
	}
	bw := bufio.NewWriter(enc)

	hb, _ := json.Marshal(hdr)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return SnapshotHeader{}, err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return SnapshotHeader{}, err
	}
	if _, err := bw.Write(body); err != nil {
		enc.Close()
		return SnapshotHeader{}, err
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return SnapshotHeader{}, err
	}
	if err := enc.Close(); err != nil {
		return SnapshotHeader{}, fmt.Errorf("zstd close: %w", err)
	}
	return hdr, nil
}

// ReadSnapshot decompresses a snapshot and migrates its body to the
// current format.
func ReadSnapshot(r io.Reader) (SnapshotHeader, engine.Snapshot, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return SnapshotHeader{}, engine.Snapshot{}, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return SnapshotHeader{}, engine.Snapshot{}, fmt.Errorf("read snapshot header: %w", err)
	}
	var hdr SnapshotHeader
	if err := json.Unmarshal(line, &hdr); err != nil {
		return SnapshotHeader{}, engine.Snapshot{}, fmt.Errorf("decode snapshot header: %w", err)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return hdr, engine.Snapshot{}, fmt.Errorf("read snapshot body: %w", err)
	}
	s, err := Decode(body)
	if err != nil {
		return hdr, engine.Snapshot{}, err
	}
	return hdr, s, nil
}

// WriteSnapshotFile writes a snapshot to path, creating parent directories.
func WriteSnapshotFile(path string, s engine.Snapshot) (SnapshotHeader, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return SnapshotHeader{}, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return SnapshotHeader{}, err
	}
	hdr, err := WriteSnapshot(f, s)
	if err != nil {
		f.Close()
		return SnapshotHeader{}, err
	}
	return hdr, f.Close()
}

// ReadSnapshotFile reads a snapshot written by WriteSnapshotFile.
func ReadSnapshotFile(path string) (SnapshotHeader, engine.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return SnapshotHeader{}, engine.Snapshot{}, err
	}
	defer f.Close()
	return ReadSnapshot(f)
}

// SnapshotPath names a snapshot file in dir by its save time.
func SnapshotPath(dir string, t time.Time) string {
	return filepath.Join(dir, "snapshot-"+t.UTC().Format("20060102T150405Z")+SnapshotExt)
}

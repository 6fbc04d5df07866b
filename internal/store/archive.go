package store

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	archiveFormat  = "historia-save"
	archiveVersion = 1
	// ArchiveExt is the conventional file extension for exported saves.
	ArchiveExt = ".historia.zst"
)

//go:embed schemas/archive.schema.json
var archiveSchemaJSON []byte

var (
	archiveSchemaOnce sync.Once
	archiveSchema     *jsonschema.Schema
	archiveSchemaErr  error
)

type archive struct {
	Format  string    `json:"format"`
	Version int       `json:"version"`
	Game    SavedGame `json:"game"`
}

func compiledArchiveSchema() (*jsonschema.Schema, error) {
	archiveSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("archive.schema.json", bytes.NewReader(archiveSchemaJSON)); err != nil {
			archiveSchemaErr = fmt.Errorf("add archive schema: %w", err)
			return
		}
		archiveSchema, archiveSchemaErr = c.Compile("archive.schema.json")
	})
	return archiveSchema, archiveSchemaErr
}

// WriteArchive writes game as zstd-compressed JSON.
func WriteArchive(w io.Writer, game SavedGame) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(archive{Format: archiveFormat, Version: archiveVersion, Game: game}); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encoding archive: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	return nil
}

// ReadArchive decompresses and validates an archive written by
// WriteArchive.
func ReadArchive(r io.Reader) (*SavedGame, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompressing archive: %w", err)
	}

	schema, err := compiledArchiveSchema()
	if err != nil {
		return nil, err
	}
	var doc any
	jdec := json.NewDecoder(bytes.NewReader(data))
	jdec.UseNumber()
	if err := jdec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding archive: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid archive: %w", err)
	}

	var a archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding archive: %w", err)
	}
	return &a.Game, nil
}

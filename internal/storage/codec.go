package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"lunargp/internal/ast"
	"lunargp/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Versioned returns the record version written by this build.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeGeneration(r model.GenerationRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeGeneration(data []byte) (model.GenerationRecord, error) {
	var record model.GenerationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.GenerationRecord{}, err
	}
	return record, nil
}

func EncodeChampion(c model.ChampionRecord) ([]byte, error) {
	return json.Marshal(c)
}

func DecodeChampion(data []byte) (model.ChampionRecord, error) {
	var champion model.ChampionRecord
	if err := json.Unmarshal(data, &champion); err != nil {
		return model.ChampionRecord{}, err
	}
	if err := checkVersion(champion.VersionedRecord); err != nil {
		return model.ChampionRecord{}, err
	}
	return champion, nil
}

// ChampionTree decodes the tree stored in a champion record.
func ChampionTree(c model.ChampionRecord) (*ast.Node, error) {
	tree, err := ast.Unmarshal(c.Program)
	if err != nil {
		return nil, fmt.Errorf("champion of run %s generation %d: %w", c.RunID, c.Generation, err)
	}
	return tree, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

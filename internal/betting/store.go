package betting

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	FileName      = "betstats_bets.json"
	schemaVersion = 1
)

type fileFormat struct {
	Version int    `json:"version"`
	Bets    []*Bet `json:"bets"`
}

// FileStore 将账本保存为 dir 下的单个 JSON 文件
type FileStore struct {
	path string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, FileName)}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load 文件不存在时返回空列表；兼容旧版无版本号的数组格式
func (s *FileStore) Load() ([]*Bet, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var legacy []*Bet
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("decode legacy bets: %w", err)
		}
		return legacy, nil
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode bets: %w", err)
	}
	if f.Version > schemaVersion {
		return nil, fmt.Errorf("unsupported bets file version %d", f.Version)
	}
	return f.Bets, nil
}

// Save 先写临时文件再重命名
func (s *FileStore) Save(bets []*Bet) error {
	if bets == nil {
		bets = []*Bet{}
	}
	data, err := json.MarshalIndent(fileFormat{Version: schemaVersion, Bets: bets}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

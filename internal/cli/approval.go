package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// approvalRecord is the on-disk shape of an allow/deny decision for a
// directory's hooks, keyed by the manifest content hash that was approved
// so a later edit to the hooks requires re-approval.
type approvalRecord struct {
	Approved   bool   `json:"approved"`
	ConfigHash string `json:"configHash"`
}

func readApproval(directory string) (*approvalRecord, error) {
	data, err := os.ReadFile(approvalFilePath(directory))
	if os.IsNotExist(err) {
		return &approvalRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	var rec approvalRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func writeApproval(directory, configHash string, approved bool) error {
	path := approvalFilePath(directory)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(approvalRecord{Approved: approved, ConfigHash: configHash})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// IsApproved reports whether directory's hooks were approved for the
// given manifest content hash (spec.md §6 allow/deny). No command in this
// package calls it; only its tests do.
func IsApproved(directory, configHash string) bool {
	rec, err := readApproval(directory)
	if err != nil {
		return false
	}
	return rec.Approved && rec.ConfigHash == configHash
}

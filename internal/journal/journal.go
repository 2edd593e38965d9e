// Package journal records lifecycle operations in an append-only
// JSONL file. Records form a hash chain so truncation or edits in the
// middle of the file are detectable.
package journal

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/pgnest-project/pgnest/pkg/jsonutil"
	"github.com/pgnest-project/pgnest/pkg/model"
)

// Record is one journal entry.
type Record struct {
	Timestamp  time.Time            `json:"timestamp"`
	Operation  model.Operation      `json:"operation"`
	State      model.OperationState `json:"state"`
	DataDir    string               `json:"data_dir,omitempty"`
	Details    map[string]any       `json:"details,omitempty"`
	PrevHash   string               `json:"prev_hash,omitempty"`
	RecordHash string               `json:"record_hash"`
}

// Appender appends records to a JSONL journal. Safe for concurrent
// use within a process; cross-process appends serialise on flock.
type Appender struct {
	path string
	mu   sync.Mutex
}

func NewAppender(path string) *Appender {
	return &Appender{path: path}
}

// Append adds a record for an operation outcome.
func (a *Appender) Append(op model.Operation, state model.OperationState, dataDir string, details map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("flock journal: %w", err)
	}
	defer syscall.Flock(int(file.Fd()), syscall.LOCK_UN)

	prevHash, err := lastRecordHash(file)
	if err != nil {
		return err
	}

	record := &Record{
		Timestamp: time.Now().UTC(),
		Operation: op,
		State:     state,
		DataDir:   dataDir,
		Details:   details,
		PrevHash:  prevHash,
	}
	record.RecordHash, err = computeRecordHash(record)
	if err != nil {
		return err
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	if _, err := file.Seek(0, 2); err != nil {
		return fmt.Errorf("seek journal: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write journal record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	return nil
}

// Read returns all records in order.
func (a *Appender) Read() ([]Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.Open(a.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue // skip malformed lines
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return records, nil
}

// Verify walks the hash chain and reports the first break, if any.
func (a *Appender) Verify() error {
	records, err := a.Read()
	if err != nil {
		return err
	}

	prev := ""
	for i := range records {
		r := records[i]
		if r.PrevHash != prev {
			return fmt.Errorf("journal chain broken at record %d: prev hash mismatch", i)
		}
		got, err := computeRecordHash(&r)
		if err != nil {
			return err
		}
		if got != r.RecordHash {
			return fmt.Errorf("journal chain broken at record %d: record hash mismatch", i)
		}
		prev = r.RecordHash
	}
	return nil
}

func lastRecordHash(file *os.File) (string, error) {
	if _, err := file.Seek(0, 0); err != nil {
		return "", fmt.Errorf("seek journal: %w", err)
	}

	var last string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		last = r.RecordHash
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan journal: %w", err)
	}
	return last, nil
}

func computeRecordHash(record *Record) (string, error) {
	hashRecord := &Record{
		Timestamp: record.Timestamp,
		Operation: record.Operation,
		State:     record.State,
		DataDir:   record.DataDir,
		Details:   record.Details,
		PrevHash:  record.PrevHash,
	}
	data, err := jsonutil.CanonicalMarshal(hashRecord)
	if err != nil {
		return "", fmt.Errorf("canonical marshal record: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

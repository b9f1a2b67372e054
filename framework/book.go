package framework

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/allo-protocol/allo-deployer/deploy"
)

// Record is the persisted form of a deployment.
type Record struct {
	Address     common.Address `json:"address"`
	TxHash      common.Hash    `json:"tx_hash"`
	BlockNumber uint64         `json:"block_number"`
	DeployedAt  time.Time      `json:"deployed_at"`
}

// Book maps chain id to contract name to its latest deployment.
type Book map[string]map[string]Record

func (b Book) Lookup(chainID uint64, contract string) (Record, bool) {
	rec, ok := b[strconv.FormatUint(chainID, 10)][contract]
	return rec, ok
}

// DeploymentBook keeps a Book in a JSON file. A redeploy overwrites the
// previous record for the same chain and contract.
type DeploymentBook struct {
	path string
	mu   sync.Mutex
}

func NewDeploymentBook(path string) *DeploymentBook {
	return &DeploymentBook{path: path}
}

func (d *DeploymentBook) Path() string {
	return d.path
}

func (d *DeploymentBook) Record(chainID uint64, dep deploy.Deployment) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	book, err := LoadBook(d.path)
	if err != nil {
		return err
	}
	key := strconv.FormatUint(chainID, 10)
	if book[key] == nil {
		book[key] = make(map[string]Record)
	}
	book[key][dep.Contract] = Record{
		Address:     dep.Address,
		TxHash:      dep.TxHash,
		BlockNumber: dep.BlockNumber,
		DeployedAt:  dep.DeployedAt,
	}
	return writeBook(d.path, book)
}

// LoadBook reads a book file. A missing file is an empty book.
func LoadBook(path string) (Book, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Book{}, nil
	}
	if err != nil {
		return nil, err
	}
	book := Book{}
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return book, nil
}

func writeBook(path string, book Book) error {
	data, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

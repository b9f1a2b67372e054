package framework

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const buildInfoDir = "build-info"

var (
	errAbstractContract = errors.New("contract is abstract and can't be deployed")
	errUnlinkedLibrary  = errors.New("bytecode has unlinked library references")
	errAmbiguousName    = errors.New("multiple artifacts match, use the fully qualified name")
	errUnknownName      = errors.New("no artifact matches")
)

// ArtifactNotFoundError is returned when a contract name cannot be turned into deployable bytecode.
type ArtifactNotFoundError struct {
	Name string
	Err  error
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("artifact %q not found: %v", e.Name, e.Err)
}

func (e *ArtifactNotFoundError) Unwrap() error { return e.Err }

// Artifact is a compiled contract as emitted by hardhat or forge.
type Artifact struct {
	ContractName string
	SourceName   string
	Abi          *abi.ABI
	Code         []byte
	Path         string
}

type artifactFile struct {
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	Abi          json.RawMessage `json:"abi"`
	Bytecode     bytecodeField   `json:"bytecode"`
}

// bytecodeField accepts the hardhat string form and the forge {"object": ...} form.
type bytecodeField string

func (b *bytecodeField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = bytecodeField(s)
		return nil
	}
	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("bytecode: %w", err)
	}
	*b = bytecodeField(obj.Object)
	return nil
}

// ReadArtifact reads a single artifact file. Names missing from the file are taken from its path.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	contractABI, err := abi.JSON(bytes.NewReader(file.Abi))
	if err != nil {
		return nil, fmt.Errorf("decode abi %s: %w", path, err)
	}

	art := &Artifact{
		ContractName: file.ContractName,
		SourceName:   file.SourceName,
		Abi:          &contractABI,
		Path:         path,
	}
	if art.ContractName == "" {
		art.ContractName = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	if art.SourceName == "" {
		art.SourceName = filepath.Base(filepath.Dir(path))
	}

	code := strings.TrimPrefix(string(file.Bytecode), "0x")
	if code == "" {
		return art, nil
	}
	if strings.Contains(code, "__") {
		return nil, errUnlinkedLibrary
	}
	if art.Code, err = hex.DecodeString(code); err != nil {
		return nil, fmt.Errorf("decode bytecode %s: %w", path, err)
	}
	return art, nil
}

func (a *Artifact) FullyQualifiedName() string {
	return a.SourceName + ":" + a.ContractName
}

// ArtifactStore resolves contract names against an artifacts directory.
type ArtifactStore struct {
	dir string
}

func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{dir: dir}
}

// Resolve finds the deployable artifact for name, either a bare contract name
// or a fully qualified "path/File.sol:Name".
func (s *ArtifactStore) Resolve(name string) (*Artifact, error) {
	candidates, err := s.candidates(name)
	if err != nil {
		return nil, &ArtifactNotFoundError{Name: name, Err: err}
	}

	switch len(candidates) {
	case 0:
		return nil, &ArtifactNotFoundError{Name: name, Err: errUnknownName}
	case 1:
	default:
		return nil, &ArtifactNotFoundError{
			Name: name,
			Err:  fmt.Errorf("%w: %s", errAmbiguousName, strings.Join(candidates, ", ")),
		}
	}

	art, err := ReadArtifact(candidates[0])
	if err != nil {
		return nil, &ArtifactNotFoundError{Name: name, Err: err}
	}
	if len(art.Code) == 0 {
		return nil, &ArtifactNotFoundError{Name: name, Err: errAbstractContract}
	}
	return art, nil
}

func (s *ArtifactStore) candidates(name string) ([]string, error) {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		source, contract := name[:i], name[i+1:]
		// hardhat keeps the full source path, forge only the file name
		var found []string
		for _, p := range []string{
			filepath.Join(s.dir, filepath.FromSlash(source), contract+".json"),
			filepath.Join(s.dir, filepath.Base(source), contract+".json"),
		} {
			if _, err := os.Stat(p); err == nil {
				found = append(found, p)
				break
			}
		}
		return found, nil
	}

	var found []string
	target := name + ".json"
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == buildInfoDir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == target {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}

// Package manifest handles basalt.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project file.
const FileName = "basalt.toml"

// Manifest represents a basalt.toml project configuration.
type Manifest struct {
	Project    Project    `toml:"project"`
	Plot       Plot       `toml:"plot"`
	Build      Build      `toml:"build"`
	Cost       Cost       `toml:"cost"`
	CodeClient CodeClient `toml:"codeclient"`

	// Dir is the directory containing the basalt.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name      string `toml:"name"`
	Entry     string `toml:"entry"`
	Catalogue string `toml:"catalogue"`
}

// Plot describes the plot the code is placed on.
type Plot struct {
	Rank string `toml:"rank"`
	Size int    `toml:"size"`
}

// Build configures compilation.
type Build struct {
	Mode     string `toml:"mode"`
	Optimize *bool  `toml:"optimize"`
	Output   string `toml:"output"`
}

// Cost is the splitter's cost model.
type Cost struct {
	Block   int `toml:"block"`
	Bracket int `toml:"bracket"`
}

// CodeClient configures the connection to the CodeClient mod.
type CodeClient struct {
	URL       string `toml:"url"`
	TokenFile string `toml:"token-file"`
}

// Defaults applied by Load.
const (
	DefaultRank          = "none"
	DefaultSize          = 50
	DefaultMode          = "strict"
	DefaultBlockCost     = 2
	DefaultBracketCost   = 1
	DefaultCodeClientURL = "ws://localhost:31375"
)

// Load parses the basalt.toml file in dir, validates it and applies
// defaults.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes and validates manifest contents. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	m.applyDefaults()
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Project.Entry == "" {
		m.Project.Entry = m.Project.Name + ".basalt"
	}
	if m.Plot.Rank == "" {
		m.Plot.Rank = DefaultRank
	}
	if m.Plot.Size == 0 {
		m.Plot.Size = DefaultSize
	}
	if m.Build.Mode == "" {
		m.Build.Mode = DefaultMode
	}
	if m.Build.Optimize == nil {
		on := true
		m.Build.Optimize = &on
	}
	if m.Build.Output == "" {
		m.Build.Output = filepath.Join("build", m.Project.Name+".cbor")
	}
	if m.Cost.Block == 0 {
		m.Cost.Block = DefaultBlockCost
	}
	if m.Cost.Bracket == 0 {
		m.Cost.Bracket = DefaultBracketCost
	}
	if m.CodeClient.URL == "" {
		m.CodeClient.URL = DefaultCodeClientURL
	}
	if m.CodeClient.TokenFile == "" {
		m.CodeClient.TokenFile = filepath.Join(os.TempDir(), ".basalt.token.temp")
	}
}

// FindAndLoad walks up from startDir to find a basalt.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path of the entry source file.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

// CataloguePath returns the absolute path of the action dump, or "" when
// the built-in catalogue is used.
func (m *Manifest) CataloguePath() string {
	if m.Project.Catalogue == "" {
		return ""
	}
	return m.resolve(m.Project.Catalogue)
}

// OutputPath returns the absolute path of the build artifact.
func (m *Manifest) OutputPath() string {
	return m.resolve(m.Build.Output)
}

// Optimize reports whether the optimizer runs.
func (m *Manifest) Optimize() bool {
	return m.Build.Optimize == nil || *m.Build.Optimize
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

const starterManifest = `[project]
name = %q

[plot]
rank = "none"
size = %d

[build]
mode = "strict"
optimize = true
`

const starterSource = `event player_event::join {
	player_action::send_message('Hello from %s!');
}
`

// Init writes a starter project called name into dir. Existing files are
// not overwritten.
func Init(dir, name string) error {
	if name == "" {
		return fmt.Errorf("project name is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	files := map[string]string{
		FileName:           fmt.Sprintf(starterManifest, name, DefaultSize),
		name + ".basalt": fmt.Sprintf(starterSource, name),
	}
	for file, content := range files {
		path := filepath.Join(dir, file)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("cannot write %s: %w", path, err)
		}
	}
	return nil
}

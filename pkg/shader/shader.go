package shader

import (
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/ccalmels/opengl-player/pkg/gpu"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/goccy/go-yaml"
)

const (
	ManifestFileName = "programs.yaml"

	ProgramPlanar     = "planar"
	ProgramSemiplanar = "semiplanar"
)

//go:embed defaults/*
var defaultsFS embed.FS

// Programs maps program names to their sources.
type Programs map[string]gpu.ProgramSource

func (p Programs) Get(name string) (gpu.ProgramSource, error) {
	src, ok := p[name]
	if !ok {
		return gpu.ProgramSource{}, fmt.Errorf("shader program '%s' is not defined", name)
	}
	return src, nil
}

type manifest struct {
	Programs []manifestProgram `yaml:"programs"`
}

type manifestProgram struct {
	Name     string   `yaml:"name"`
	Vertex   string   `yaml:"vertex"`
	Fragment string   `yaml:"fragment"`
	Samplers []string `yaml:"samplers"`
}

// Load reads the manifest and all the program sources it references.
func Load(
	ctx context.Context,
	fs billy.Filesystem,
) (Programs, error) {
	logger.Debugf(ctx, "Load(ctx, '%s')", fs.Root())
	defer logger.Debugf(ctx, "/Load(ctx, '%s')", fs.Root())

	manifestBytes, err := readFile(fs, ManifestFileName)
	if err != nil {
		return nil, err
	}

	var m manifest
	if err := yaml.Unmarshal(manifestBytes, &m); err != nil {
		return nil, fmt.Errorf("unable to parse '%s': %w", ManifestFileName, err)
	}
	if len(m.Programs) == 0 {
		return nil, fmt.Errorf("'%s' defines no programs", ManifestFileName)
	}

	result := Programs{}
	for _, p := range m.Programs {
		if p.Name == "" {
			return nil, fmt.Errorf("'%s' contains a program without a name", ManifestFileName)
		}
		if _, ok := result[p.Name]; ok {
			return nil, fmt.Errorf("program '%s' is defined twice", p.Name)
		}
		vertex, err := readFile(fs, p.Vertex)
		if err != nil {
			return nil, fmt.Errorf("program '%s': %w", p.Name, err)
		}
		fragment, err := readFile(fs, p.Fragment)
		if err != nil {
			return nil, fmt.Errorf("program '%s': %w", p.Name, err)
		}
		result[p.Name] = gpu.ProgramSource{
			Name:           p.Name,
			VertexSource:   string(vertex),
			FragmentSource: string(fragment),
			Samplers:       p.Samplers,
		}
	}
	return result, nil
}

func readFile(fs billy.Filesystem, name string) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("empty file name")
	}
	f, err := fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", fs.Join(fs.Root(), name), err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read '%s': %w", fs.Join(fs.Root(), name), err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("'%s' is empty", fs.Join(fs.Root(), name))
	}
	return b, nil
}

// Defaults returns an in-memory filesystem with the shaders built into
// the binary.
func Defaults() (billy.Filesystem, error) {
	result := memfs.New()
	entries, err := defaultsFS.ReadDir("defaults")
	if err != nil {
		return nil, fmt.Errorf("unable to list the built-in shaders: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := copyFile(result, defaultsFS, entry.Name()); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func copyFile(dst billy.Filesystem, src embed.FS, name string) error {
	b, err := src.ReadFile(path.Join("defaults", name))
	if err != nil {
		return fmt.Errorf("unable to read the built-in '%s': %w", name, err)
	}
	f, err := dst.Create(name)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", name, err)
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("unable to write '%s': %w", name, err)
	}
	return nil
}

// Resolve picks the filesystem to load the shaders from:
// an explicit override (which must exist), else the compile-time path if
// it exists, else the built-in shaders.
func Resolve(
	ctx context.Context,
	overridePath string,
	compileTimePath string,
) (billy.Filesystem, error) {
	if overridePath != "" {
		if !isDir(overridePath) {
			return nil, fmt.Errorf("shaders path '%s' is not a directory", overridePath)
		}
		logger.Debugf(ctx, "using shaders from '%s'", overridePath)
		return osfs.New(overridePath), nil
	}
	if compileTimePath != "" && isDir(compileTimePath) {
		logger.Debugf(ctx, "using shaders from '%s'", compileTimePath)
		return osfs.New(compileTimePath), nil
	}
	logger.Debugf(ctx, "using the built-in shaders")
	return Defaults()
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	if err != nil {
		return false
	}
	return st.IsDir()
}

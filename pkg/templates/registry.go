package templates

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jvolkova/autoquest/internal/faults"
)

// Template describes one reference image: where it lives, how confident a
// match must be, and optionally where in the frame to look for it.
type Template struct {
	Name      string
	Path      string
	Threshold float64
	Region    *image.Rectangle
}

// Definition is a template entry in the YAML registry file. Declaration
// order in the file is the detection priority order.
type Definition struct {
	Name      string     `yaml:"name"`
	Path      string     `yaml:"path,omitempty"`
	Threshold float64    `yaml:"threshold,omitempty"`
	Region    *RegionDef `yaml:"region,omitempty"`
	Preload   bool       `yaml:"preload,omitempty"`
}

// RegionDef is a rectangular search region in the YAML file
type RegionDef struct {
	X1 int `yaml:"x1"`
	Y1 int `yaml:"y1"`
	X2 int `yaml:"x2"`
	Y2 int `yaml:"y2"`
}

// File is the structure of a template registry YAML file
type File struct {
	Templates []Definition `yaml:"templates"`
}

const defaultThreshold = 0.8

// Registry manages templates and their lazily loaded images. Immutable
// after loading; image loads are cached.
type Registry struct {
	mu       sync.RWMutex
	basePath string
	ordered  []Template
	byName   map[string]Template
	images   map[string]*image.RGBA
}

// NewRegistry creates an empty registry rooted at basePath
func NewRegistry(basePath string) *Registry {
	return &Registry{
		basePath: basePath,
		byName:   make(map[string]Template),
		images:   make(map[string]*image.RGBA),
	}
}

// LoadFromFile loads template definitions from a YAML file, preserving
// declaration order. Templates marked preload have their images decoded
// immediately; a preload failure fails the load.
func (r *Registry) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read template file %s: %w", filePath, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal template YAML: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, def := range file.Templates {
		if def.Name == "" {
			return fmt.Errorf("template %d: name cannot be empty", i+1)
		}
		if err := r.add(def); err != nil {
			return err
		}
	}

	for _, def := range file.Templates {
		if !def.Preload {
			continue
		}
		if _, err := r.loadImage(r.byName[def.Name]); err != nil {
			return err
		}
	}

	return nil
}

// AddConvention registers the given names using the default path convention
// {basePath}/{name}_template.png, skipping names already registered.
func (r *Registry) AddConvention(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		if _, exists := r.byName[name]; exists {
			continue
		}
		if err := r.add(Definition{Name: name}); err != nil {
			return err
		}
	}
	return nil
}

// add registers a definition. Caller holds the lock.
func (r *Registry) add(def Definition) error {
	if _, dup := r.byName[def.Name]; dup {
		return fmt.Errorf("template %q declared twice", def.Name)
	}

	path := def.Path
	if path == "" {
		path = def.Name + "_template.png"
	}

	t := Template{
		Name:      def.Name,
		Path:      filepath.Join(r.basePath, path),
		Threshold: def.Threshold,
	}
	if t.Threshold == 0 {
		t.Threshold = defaultThreshold
	}
	if def.Region != nil {
		rect := image.Rect(def.Region.X1, def.Region.Y1, def.Region.X2, def.Region.Y2)
		t.Region = &rect
	}

	r.byName[def.Name] = t
	r.ordered = append(r.ordered, t)
	return nil
}

// Get returns the template registered under name
func (r *Registry) Get(name string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// Ordered returns templates in declaration (priority) order
func (r *Registry) Ordered() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Template, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registered templates
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// Image returns the decoded image for the named template, loading and
// caching it on first use. A missing or undecodable file is a
// ResourceError.
func (r *Registry) Image(name string) (*image.RGBA, error) {
	r.mu.RLock()
	if img, ok := r.images[name]; ok {
		r.mu.RUnlock()
		return img, nil
	}
	t, ok := r.byName[name]
	r.mu.RUnlock()

	if !ok {
		return nil, faults.NewResourceError("template", name, fmt.Errorf("not registered"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadImage(t)
}

// loadImage decodes the template file. Caller holds the write lock.
func (r *Registry) loadImage(t Template) (*image.RGBA, error) {
	if img, ok := r.images[t.Name]; ok {
		return img, nil
	}

	file, err := os.Open(t.Path)
	if err != nil {
		return nil, faults.NewResourceError("template", t.Path, err)
	}
	defer file.Close()

	decoded, err := png.Decode(file)
	if err != nil {
		return nil, faults.NewResourceError("template", t.Path, err)
	}

	img := toRGBA(decoded)
	r.images[t.Name] = img
	return img, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			rgba.Set(x, y, img.At(x, y))
		}
	}
	return rgba
}

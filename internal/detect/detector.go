package detect

import (
	"image"

	"github.com/jvolkova/autoquest/internal/cv"
	"github.com/jvolkova/autoquest/internal/faults"
	"github.com/jvolkova/autoquest/pkg/templates"
)

// entry binds one event kind to its loaded template and detection policy
type entry struct {
	kind     EventKind
	template *image.RGBA
	config   cv.MatchConfig
	name     string
	size     image.Point
}

// Detector classifies frames into at most one event kind. Entries are
// checked in priority order and classification short-circuits on the first
// template that clears its threshold; cross-kind confidence is never
// compared.
type Detector struct {
	entries []entry
}

// NewDetector builds a detector from the registry. Templates for the given
// kinds are resolved and decoded once, in the given priority order. A kind
// without a resolvable template is a ResourceError.
func NewDetector(registry *templates.Registry, kinds []EventKind) (*Detector, error) {
	if len(kinds) == 0 {
		kinds = AllKinds()
	}

	d := &Detector{entries: make([]entry, 0, len(kinds))}
	for _, kind := range kinds {
		tmpl, ok := registry.Get(string(kind))
		if !ok {
			return nil, faults.NewResourceError("template", string(kind), errNotRegistered)
		}
		img, err := registry.Image(string(kind))
		if err != nil {
			return nil, err
		}

		d.entries = append(d.entries, entry{
			kind:     kind,
			template: img,
			name:     tmpl.Name,
			config: cv.MatchConfig{
				Threshold:    tmpl.Threshold,
				SearchRegion: tmpl.Region,
			},
			size: image.Point{X: img.Bounds().Dx(), Y: img.Bounds().Dy()},
		})
	}
	return d, nil
}

var errNotRegistered = &notRegisteredError{}

type notRegisteredError struct{}

func (*notRegisteredError) Error() string { return "no template registered for event kind" }

// Classify scans the frame against each template in priority order and
// returns the first kind whose match clears its threshold. The bool result
// is false when nothing matched; that is the normal miss outcome, not an
// error.
func (d *Detector) Classify(frame *image.RGBA) (EventKind, cv.MatchResult, bool) {
	for _, e := range d.entries {
		if result, ok := cv.Match(frame, e.template, e.config); ok {
			result.Template = e.name
			return e.kind, result, true
		}
	}
	return "", cv.MatchResult{}, false
}

// Check probes the frame for a single event kind
func (d *Detector) Check(frame *image.RGBA, kind EventKind) bool {
	for _, e := range d.entries {
		if e.kind != kind {
			continue
		}
		_, ok := cv.Match(frame, e.template, e.config)
		return ok
	}
	return false
}

// TemplateSize returns the pixel size of the template bound to kind, used
// to derive click centers from match locations.
func (d *Detector) TemplateSize(kind EventKind) (image.Point, bool) {
	for _, e := range d.entries {
		if e.kind == kind {
			return e.size, true
		}
	}
	return image.Point{}, false
}

// Kinds returns the detector's kinds in priority order
func (d *Detector) Kinds() []EventKind {
	kinds := make([]EventKind, len(d.entries))
	for i, e := range d.entries {
		kinds[i] = e.kind
	}
	return kinds
}

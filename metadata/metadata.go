package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"

	"github.com/meigma/assetimport/internal/assettype"
	"github.com/meigma/assetimport/resolve"
)

// ErrNotFound is returned by Get when no distribution has the name.
var ErrNotFound = assettype.ErrNotFound

// errNoName is returned by Parse for manifests without a Name field.
var errNoName = errors.New("metadata: manifest has no Name field")

// Manifest file names inside metadata directories.
const (
	distInfoManifest = "METADATA"
	eggInfoManifest  = "PKG-INFO"
)

// Source yields the namespace's metadata sources in search order.
// *resolve.Resolver implements it.
type Source interface {
	DistributionSources() []resolve.DistributionSource
}

// Distribution is one installed distribution.
type Distribution struct {
	Name     string
	Version  string
	Author   string
	Requires []string

	// Location is the path entry holding the metadata directory, and Dir
	// the directory's name within it.
	Location string
	Dir      string

	// Fields holds every manifest header, keyed by canonical header name.
	Fields map[string][]string
}

// Provider lists distributions visible through a Source.
type Provider struct {
	src    Source
	logger *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger for skipped entries.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// New creates a Provider reading from src.
func New(src Source, opts ...Option) *Provider {
	p := &Provider{src: src}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// List returns every readable distribution in namespace order. A name may
// appear more than once when several path entries ship it.
func (p *Provider) List() ([]Distribution, error) {
	var out []Distribution
	for _, src := range p.src.DistributionSources() {
		refs, err := src.Distributions()
		if err != nil {
			p.log().Debug("skipping unreadable path entry", "error", err)
			continue
		}
		for _, ref := range refs {
			d, err := load(ref)
			if err != nil {
				p.log().Warn("skipping distribution", "location", ref.Location, "dir", ref.Dir, "error", err)
				continue
			}
			out = append(out, d)
		}
	}
	return out, nil
}

// Get returns the first distribution whose normalized name matches name.
func (p *Provider) Get(name string) (Distribution, error) {
	want := Normalize(name)
	dists, err := p.List()
	if err != nil {
		return Distribution{}, err
	}
	for _, d := range dists {
		if Normalize(d.Name) == want {
			return d, nil
		}
	}
	return Distribution{}, fmt.Errorf("%w: distribution %q", ErrNotFound, name)
}

func load(ref resolve.DistributionRef) (Distribution, error) {
	manifest := distInfoManifest
	if strings.HasSuffix(ref.Dir, ".egg-info") {
		manifest = eggInfoManifest
	}
	data, err := ref.Read(manifest)
	if err != nil {
		return Distribution{}, fmt.Errorf("read %s: %w", manifest, err)
	}
	d, err := Parse(data)
	if err != nil {
		return Distribution{}, err
	}
	d.Location = ref.Location
	d.Dir = ref.Dir
	return d, nil
}

// Parse decodes a METADATA or PKG-INFO manifest. Only the header block is
// read; the long description body is ignored.
func Parse(data []byte) (Distribution, error) {
	// A manifest with no body may lack the blank separator line.
	if !bytes.HasSuffix(data, []byte("\n")) {
		data = append(bytes.Clone(data), '\n')
	}
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return Distribution{}, fmt.Errorf("metadata: parse manifest: %w", err)
	}
	d := Distribution{
		Name:     msg.Header.Get("Name"),
		Version:  msg.Header.Get("Version"),
		Author:   msg.Header.Get("Author"),
		Requires: msg.Header["Requires-Dist"],
		Fields:   map[string][]string(msg.Header),
	}
	if d.Name == "" {
		return Distribution{}, errNoName
	}
	return d, nil
}

var separators = regexp.MustCompile(`[-_.]+`)

// Normalize returns the comparison form of a distribution name: lower
// case, with runs of "-", "_" and "." collapsed to "-".
func Normalize(name string) string {
	return separators.ReplaceAllString(strings.ToLower(name), "-")
}

func (p *Provider) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

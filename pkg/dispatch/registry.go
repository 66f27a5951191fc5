// Package dispatch maps a core.FamilyTag to the constructors that build a
// Session and Parser for that device family: a FamilyTag-keyed table the rest
// of the program consults instead of switching on family in every caller.
package dispatch

import (
	"fmt"
	"sort"

	"divecomputer/pkg/core"
	"divecomputer/pkg/transport"
)

// SessionFactory opens a Session for one device family over channel, using
// the supplied per-family parameters (nil means defaults).
type SessionFactory func(channel transport.ByteChannel, params map[string]string) (core.Session, core.Status)

// ParserFactory builds a Parser for one device family, given the device's
// model number (some families vary field layout by model) and the
// DeviceInfo recorded at download time.
type ParserFactory func(model int, info core.DeviceInfo) (core.Parser, core.Status)

// Descriptor records one registered family's constructors plus a
// human-readable name for reports and CLI listings.
type Descriptor struct {
	Tag         core.FamilyTag
	Name        string
	NewSession  SessionFactory
	NewParser   ParserFactory
}

// Registry is a FamilyTag-keyed constructor table. The zero value is empty;
// use Global to get the one pre-populated by Register calls made via
// init() in each families/* package.
type Registry struct {
	entries map[core.FamilyTag]Descriptor
}

var global = &Registry{entries: make(map[core.FamilyTag]Descriptor)}

// Register adds a family's constructors to the global registry. Families
// call this from an init() function in their package, mirroring how the
// teacher's methods/* packages register themselves with the factory by
// being imported for side effect.
func Register(d Descriptor) {
	if global.entries == nil {
		global.entries = make(map[core.FamilyTag]Descriptor)
	}
	if _, exists := global.entries[d.Tag]; exists {
		panic(fmt.Sprintf("dispatch: family %v already registered", d.Tag))
	}
	global.entries[d.Tag] = d
}

// Global returns the process-wide registry populated by every imported
// families/* package's init().
func Global() *Registry { return global }

// Lookup returns the descriptor for tag, or StatusUnsupported if no family
// package registered it.
func (r *Registry) Lookup(tag core.FamilyTag) (Descriptor, core.Status) {
	d, ok := r.entries[tag]
	if !ok {
		return Descriptor{}, core.StatusUnsupported
	}
	return d, core.StatusSuccess
}

// NewSession opens a Session for tag over channel using params (nil for
// defaults), delegating to the registered family's SessionFactory.
func (r *Registry) NewSession(tag core.FamilyTag, channel transport.ByteChannel, params map[string]string) (core.Session, core.Status) {
	d, status := r.Lookup(tag)
	if !status.Succeeded() {
		return nil, status
	}
	return d.NewSession(channel, params)
}

// NewParser builds a Parser for tag, delegating to the registered family's
// ParserFactory.
func (r *Registry) NewParser(tag core.FamilyTag, model int, info core.DeviceInfo) (core.Parser, core.Status) {
	d, status := r.Lookup(tag)
	if !status.Succeeded() {
		return nil, status
	}
	return d.NewParser(model, info)
}

// Families returns every registered family's descriptor, sorted by name for
// stable reporting.
func (r *Registry) Families() []Descriptor {
	out := make([]Descriptor, 0, len(r.entries))
	for _, d := range r.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

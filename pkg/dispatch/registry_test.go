package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"divecomputer/pkg/core"
	"divecomputer/pkg/dispatch"
	"divecomputer/pkg/transport"
)

const testTag core.FamilyTag = 0xFF01

func init() {
	dispatch.Register(dispatch.Descriptor{
		Tag:  testTag,
		Name: "test-family",
		NewSession: func(ch transport.ByteChannel, params map[string]string) (core.Session, core.Status) {
			return nil, core.StatusSuccess
		},
		NewParser: func(model int, info core.DeviceInfo) (core.Parser, core.Status) {
			return nil, core.StatusSuccess
		},
	})
}

func TestLookupKnownFamily(t *testing.T) {
	d, status := dispatch.Global().Lookup(testTag)
	assert.True(t, status.Succeeded())
	assert.Equal(t, "test-family", d.Name)
}

func TestLookupUnknownFamily(t *testing.T) {
	_, status := dispatch.Global().Lookup(core.FamilyTag(0xDEAD))
	assert.Equal(t, core.StatusUnsupported, status)
}

func TestNewSessionDelegates(t *testing.T) {
	_, status := dispatch.Global().NewSession(testTag, nil, nil)
	assert.True(t, status.Succeeded())
}

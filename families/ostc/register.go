package ostc

import (
	"divecomputer/pkg/core"
	"divecomputer/pkg/dispatch"
	"divecomputer/pkg/transport"
)

func init() {
	dispatch.Register(dispatch.Descriptor{
		Tag:  core.FamilyHWOSTC,
		Name: "hw-ostc3",
		NewSession: func(channel transport.ByteChannel, _ map[string]string) (core.Session, core.Status) {
			return Open(channel, Params{})
		},
		NewParser: func(model int, info core.DeviceInfo) (core.Parser, core.Status) {
			return NewParser(model, info)
		},
	})
}

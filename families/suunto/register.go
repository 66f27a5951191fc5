package suunto

import (
	"strconv"

	"divecomputer/pkg/core"
	"divecomputer/pkg/dispatch"
	"divecomputer/pkg/transport"
)

func init() {
	dispatch.Register(dispatch.Descriptor{
		Tag:  core.FamilySuuntoVyper,
		Name: "suunto-d9",
		NewSession: func(channel transport.ByteChannel, params map[string]string) (core.Session, core.Status) {
			hint := 0
			if v, ok := params["model"]; ok {
				if parsed, err := strconv.Atoi(v); err == nil {
					hint = parsed
				}
			}
			return Open(channel, Params{ModelHint: hint})
		},
		NewParser: func(model int, info core.DeviceInfo) (core.Parser, core.Status) {
			return NewParser(model, info)
		},
	})
}

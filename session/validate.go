package session

import (
	"bytes"
	"fmt"
	"paint-server/core"
	"regexp"
)

// PNGDataURLPrefix is the required start of every stored layer.
const PNGDataURLPrefix = "data:image/png;base64,"

// Route patterns, shared with the router so both layers agree.
const (
	SessionIDPattern = `[A-Za-z0-9_-]{3,100}`
	LayerIDPattern   = `[0-9.]{1,20}`
)

var (
	sessionIDRe = regexp.MustCompile(`^` + SessionIDPattern + `$`)
	layerIDRe   = regexp.MustCompile(`^` + LayerIDPattern + `$`)
)

func ValidateSessionID(sessionID string) error {
	if !sessionIDRe.MatchString(sessionID) {
		return fmt.Errorf("%w: session id %q", core.ErrBadIdentifier, sessionID)
	}
	return nil
}

func ValidateLayerID(layerID string) error {
	if !layerIDRe.MatchString(layerID) {
		return fmt.Errorf("%w: layer id %q", core.ErrBadIdentifier, layerID)
	}
	return nil
}

// ValidatePayload only checks the data URL prefix; the image itself is
// never decoded.
func ValidatePayload(payload []byte) error {
	if !bytes.HasPrefix(payload, []byte(PNGDataURLPrefix)) {
		return core.ErrBadEncoding
	}
	return nil
}

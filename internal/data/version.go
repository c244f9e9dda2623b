package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Version packs a major.minor.revision triple into 32 bits for compact
// transport: major in the top byte, minor in the next, revision in the low
// 16 bits. The human-readable form is "major.minor.revision".
type Version uint32

var (
	ErrVersionMissingComponents = errors.New("version is missing components")
	ErrVersionTooManyComponents = errors.New("version has too many components")
)

// VersionFromParts builds a Version from its three components.
func VersionFromParts(major, minor uint8, revision uint16) Version {
	return Version(uint32(major)<<24 | uint32(minor)<<16 | uint32(revision))
}

func (v Version) Major() uint8     { return uint8(v >> 24) }
func (v Version) Minor() uint8     { return uint8(v >> 16) }
func (v Version) Revision() uint16 { return uint16(v) }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Revision())
}

// ParseVersion parses "major.minor.revision". Missing or extra components
// fail, as do components out of range for their packed width.
func ParseVersion(s string) (Version, error) {
	components := strings.Split(s, ".")
	if len(components) < 3 {
		return 0, ErrVersionMissingComponents
	}
	if len(components) > 3 {
		return 0, ErrVersionTooManyComponents
	}
	major, err := strconv.ParseUint(components[0], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid major component: %w", err)
	}
	minor, err := strconv.ParseUint(components[1], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid minor component: %w", err)
	}
	revision, err := strconv.ParseUint(components[2], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid revision component: %w", err)
	}
	return VersionFromParts(uint8(major), uint8(minor), uint16(revision)), nil
}

func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Version) UnmarshalJSON(in []byte) error {
	var s string
	if err := json.Unmarshal(in, &s); err != nil {
		return err
	}
	parsed, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ProtocolVersion is the version of the protocol implemented by this server.
var ProtocolVersion = VersionFromParts(0, 1, 0)
